// Package sandbox runs third-party unpacker scripts in an isolated, DOM-less
// goja interpreter. A fresh runtime is created per call, primed with a small
// prelude of stub globals matching the idioms of the embed pages, and the
// resolution result is read back from named global variables. The sandboxed
// script gets no filesystem or network capability.
package sandbox

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/pbs/tvshows/internal/errs"
)

// firePlayerPrelude stubs the globals a FirePlayer-style unpacker expects:
// a bare document, the FirePlayer payload constructor that copies its second
// argument's fields into output variables, and a jQuery-like callable.
const firePlayerPrelude = `
	var videoUrl = '';
	var videoServer = 12;
	var videoDisk = '';

	var document = {};

	var FirePlayer = function(a, b, c) {
		videoUrl = b.videoUrl;
		videoServer = b.videoServer;
		videoDisk = b.videoDisk ? b.videoDisk : '';
	};

	var $ = function(arg) {
		if (typeof arg == 'function') {
			arg();
		} else {
			console.log('In $', arg);
		}
		return {
			ready: function(a) {
				if (typeof a == 'function') {
					a();
				} else {
					console.log('In $.ready', a);
				}
			}
		};
	};
`

// playerSetupPrelude stubs a jwplayer-style factory whose setup() picks the
// highest-quality source (numeric label, descending).
const playerSetupPrelude = `
	var source = null;

	function jwplayer() {
		return {
			setup: function(config) {
				var arr = config.sources.sort(function(a, b) {
					return parseInt(b.label) - parseInt(a.label);
				});
				source = arr[0].file;

				return {
					addButton: function() {},
					seek: function() {},
				};
			},
			on: function() {},
		};
	}
`

// Result holds the output variables a FirePlayer unpacker leaves behind.
type Result struct {
	VideoURL string
	Server   string
	Disk     string
}

func newRuntime(prelude string) (*goja.Runtime, error) {
	vm := goja.New()
	if err := vm.Set("console", map[string]interface{}{
		"log": func(args ...interface{}) {},
	}); err != nil {
		return nil, fmt.Errorf("%w: installing console: %v", errs.ErrEvaluation, err)
	}
	if _, err := vm.RunString(prelude); err != nil {
		return nil, fmt.Errorf("%w: running prelude: %v", errs.ErrEvaluation, err)
	}
	return vm, nil
}

func readback(vm *goja.Runtime, name string) (string, error) {
	val := vm.Get(name)
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", fmt.Errorf("%w: output variable %q missing", errs.ErrEvaluation, name)
	}
	return val.String(), nil
}

// Evaluate runs an unpacker script against the FirePlayer prelude and reads
// back the video URL, server id and disk token.
func Evaluate(script string) (Result, error) {
	vm, err := newRuntime(firePlayerPrelude)
	if err != nil {
		return Result{}, err
	}
	if _, err := vm.RunString(script); err != nil {
		return Result{}, fmt.Errorf("%w: %v", errs.ErrEvaluation, err)
	}

	var res Result
	if res.VideoURL, err = readback(vm, "videoUrl"); err != nil {
		return Result{}, err
	}
	if res.VideoURL == "" {
		return Result{}, fmt.Errorf("%w: script produced no video URL", errs.ErrEvaluation)
	}
	if res.Server, err = readback(vm, "videoServer"); err != nil {
		return Result{}, err
	}
	if res.Disk, err = readback(vm, "videoDisk"); err != nil {
		return Result{}, err
	}
	return res, nil
}

// EvaluatePlayerSetup runs an unpacker script against the player-setup
// prelude and returns the selected file URL.
func EvaluatePlayerSetup(script string) (string, error) {
	vm, err := newRuntime(playerSetupPrelude)
	if err != nil {
		return "", err
	}
	if _, err := vm.RunString(script); err != nil {
		return "", fmt.Errorf("%w: %v", errs.ErrEvaluation, err)
	}

	val := vm.Get("source")
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return "", fmt.Errorf("%w: script selected no source", errs.ErrEvaluation)
	}
	return val.String(), nil
}
