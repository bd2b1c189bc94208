package buildsys

import (
	"encoding/gob"
	"os"

	"github.com/rotisserie/eris"
)

func init() {
	gob.Register(TaskList{})
	gob.Register(Task{})
	gob.Register(TaskCmdScript{})
	gob.Register(TaskCmdTaskRef{})
	gob.Register(TaskCmdPipeline{})
	gob.Register(TaskCmdClean{})
	gob.Register(TaskCmdWatch{})
}

// cacheVersion has to be bumped whenever one of the cached types changes
const cacheVersion = 2

type cacheHeader struct {
	Version int
	Script  string
	ModTime int64
}

// WriteCache stores the parsed task list together with the options it was generated from.
// script is the task script, ReadCache rejects the cache once it's modified.
func WriteCache(file, script string, options map[string]string, list TaskList) error {
	info, err := os.Stat(script)
	if err != nil {
		return eris.Wrapf(err, "failed to check %s", script)
	}

	handle, err := os.Create(file)
	if err != nil {
		return eris.Wrapf(err, "failed to create %s", file)
	}
	defer handle.Close()

	encoder := gob.NewEncoder(handle)
	err = encoder.Encode(cacheHeader{
		Version: cacheVersion,
		Script:  script,
		ModTime: info.ModTime().UnixNano(),
	})
	if err != nil {
		return eris.Wrap(err, "failed to encode cache header")
	}

	err = encoder.Encode(options)
	if err != nil {
		return eris.Wrap(err, "failed to encode options")
	}

	err = encoder.Encode(list)
	if err != nil {
		return eris.Wrap(err, "failed to encode tasks")
	}
	return nil
}

// ErrStaleCache is returned by ReadCache if the cache was written by a different version or
// for a different (or modified) script
var ErrStaleCache = eris.New("stale cache")

// ReadCache loads a cache written by WriteCache
func ReadCache(file, script string) (map[string]string, TaskList, error) {
	handle, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer handle.Close()

	decoder := gob.NewDecoder(handle)

	var header cacheHeader
	err = decoder.Decode(&header)
	if err != nil {
		return nil, nil, eris.Wrap(err, "failed to decode cache header")
	}

	info, err := os.Stat(script)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "failed to check %s", script)
	}

	if header.Version != cacheVersion || header.Script != script || header.ModTime != info.ModTime().UnixNano() {
		return nil, nil, ErrStaleCache
	}

	var options map[string]string
	err = decoder.Decode(&options)
	if err != nil {
		return nil, nil, eris.Wrap(err, "failed to decode options")
	}

	var result TaskList
	err = decoder.Decode(&result)
	if err != nil {
		return options, nil, eris.Wrap(err, "failed to decode tasks")
	}

	return options, result, nil
}
