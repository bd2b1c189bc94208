package buildsys

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrCycle is returned (wrapped) by ValidateGraph if tasks depend on each other
var ErrCycle = eris.New("dependency cycle")

// edges returns every task referenced by task through its deps, task refs and watches
func edges(task *Task) []string {
	result := make([]string, 0, len(task.Deps))
	result = append(result, task.Deps...)

	for _, cmd := range task.Cmds {
		switch value := cmd.(type) {
		case TaskCmdTaskRef:
			result = append(result, value.Tasks...)
		case TaskCmdWatch:
			result = append(result, value.Tasks...)
		}
	}
	return result
}

// ValidateGraph checks that every referenced task exists and that there are no cycles.
// Watched tasks count as references because they run from inside the watching task.
func ValidateGraph(tasks TaskList) error {
	names := make([]string, 0, len(tasks))
	for name := range tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	index := make(map[string]int, len(names))
	for idx, name := range names {
		index[name] = idx
	}

	outgoing := make([][]int, len(names))
	indeg := make([]int, len(names))
	missing := make([]string, 0)

	for idx, name := range names {
		seen := make(map[int]bool)
		for _, ref := range edges(tasks[name]) {
			target, ok := index[ref]
			if !ok {
				missing = append(missing, name+" -> "+ref)
				continue
			}

			if !seen[target] {
				seen[target] = true
				outgoing[idx] = append(outgoing[idx], target)
				indeg[target]++
			}
		}
		sort.Ints(outgoing[idx])
	}

	if len(missing) > 0 {
		return eris.Errorf("unknown tasks referenced: %s", strings.Join(missing, ", "))
	}

	// Kahn's algorithm; anything left over is part of (or blocked by) a cycle
	ready := make([]int, 0)
	for idx := range indeg {
		if indeg[idx] == 0 {
			ready = append(ready, idx)
		}
	}

	visited := 0
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		visited++

		for _, target := range outgoing[node] {
			indeg[target]--
			if indeg[target] == 0 {
				ready = append(ready, target)
			}
		}
	}

	if visited == len(names) {
		return nil
	}

	cycle := findCycle(outgoing)
	path := make([]string, len(cycle))
	for idx, node := range cycle {
		path[idx] = names[node]
	}
	return eris.Wrapf(ErrCycle, "%s", strings.Join(path, " -> "))
}

// findCycle returns the first cycle found by a DFS in index order, starting and ending with
// the same node
func findCycle(outgoing [][]int) []int {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(outgoing))
	var stack []int
	var cycle []int

	var visit func(node int) bool
	visit = func(node int) bool {
		color[node] = gray
		stack = append(stack, node)

		for _, target := range outgoing[node] {
			switch color[target] {
			case white:
				if visit(target) {
					return true
				}
			case gray:
				for idx, item := range stack {
					if item == target {
						cycle = append(append(cycle, stack[idx:]...), target)
						return true
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[node] = black
		return false
	}

	for node := range outgoing {
		if color[node] == white && visit(node) {
			break
		}
	}
	return cycle
}
