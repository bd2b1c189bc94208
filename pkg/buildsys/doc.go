// Package buildsys implements a small asset build system based on Starlark for the task
// definitions, mvdan.cc/sh for the shell runtime and the pipeline package for file
// processing.
//
// A tasks.star script declares its tasks in a configure() function. Tasks can run shell
// commands, other tasks and file pipelines (src | transforms | dest), and a task can watch
// files and re-run other tasks whenever they change.
package buildsys
