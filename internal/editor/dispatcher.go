package editor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgallion1/redraft/internal/chunker"
)

// Fixed constants of the design. Only chunk sizing and the large-document
// threshold are configured externally.
const (
	maxVariations      = 5
	variationBaseTemp  = 0.6
	variationTempStep  = 0.1
	variationWordLimit = 1000

	defaultBaseTemperature = 0.7
)

// Options select the editing strategy for one chunk or document.
type Options struct {
	// NumVariations > 1 requests that many candidate edits (clamped to 5)
	// at ascending temperatures.
	NumVariations int
	// Refine replaces the single call with a three-step edit/review/polish
	// chain on the same backend.
	Refine bool
	// BaseTemperature for the initial call; 0 means the default 0.7.
	BaseTemperature float64
}

func (o Options) baseTemp() float64 {
	if o.BaseTemperature <= 0 {
		return defaultBaseTemperature
	}
	return o.BaseTemperature
}

// Dispatcher routes edit requests to an ordered list of backends. The list
// order is the model preference order; a backend failing hands the request to
// the next one. The dispatcher itself is stateless and safe for concurrent
// use.
type Dispatcher struct {
	clients []Client
	log     *slog.Logger
}

func NewDispatcher(clients []Client, log *slog.Logger) *Dispatcher {
	return &Dispatcher{clients: clients, log: log}
}

// EditChunk edits one bounded piece of text, falling back through the backend
// preference order. Exhausting the list returns an ExhaustedError carrying
// the last backend's error.
func (d *Dispatcher) EditChunk(ctx context.Context, text, instruction string, opts Options) (string, error) {
	if len(d.clients) == 0 {
		return "", &ExhaustedError{Attempts: 0, Last: errors.New("no editing backends configured")}
	}

	var lastErr error
	for _, c := range d.clients {
		var out string
		var err error
		if opts.Refine {
			out, err = d.refineChain(ctx, c, text, instruction, opts.baseTemp())
		} else {
			out, err = d.editOnce(ctx, c, Request{
				Instruction: instruction,
				Text:        text,
				Temperature: opts.baseTemp(),
			})
		}
		if err == nil {
			return out, nil
		}
		lastErr = err
		d.log.Warn("editing backend failed", "backend", c.Name(), "error", err)
	}
	return "", &ExhaustedError{Attempts: len(d.clients), Last: lastErr}
}

// EditVariations produces up to NumVariations deduplicated candidate edits.
// Variation calls go concurrently to one backend at ascending temperatures
// (0.6, 0.7, ...); the next backend is tried only when every call failed.
// Inputs above the variation word limit fall back to a single edit — one
// candidate — to keep long-document costs bounded.
func (d *Dispatcher) EditVariations(ctx context.Context, text, instruction string, opts Options) ([]string, error) {
	n := opts.NumVariations
	if n < 1 {
		n = 1
	}
	if n > maxVariations {
		n = maxVariations
	}
	if n == 1 || chunker.CountWords(text) > variationWordLimit {
		out, err := d.EditChunk(ctx, text, instruction, opts)
		if err != nil {
			return nil, err
		}
		return []string{out}, nil
	}
	if len(d.clients) == 0 {
		return nil, &ExhaustedError{Attempts: 0, Last: errors.New("no editing backends configured")}
	}

	var lastErr error
	for _, c := range d.clients {
		// Each call writes its own slot; no locking needed.
		results := make([]string, n)
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = d.editOnce(ctx, c, Request{
					Instruction: instruction,
					Text:        text,
					Temperature: variationBaseTemp + float64(i)*variationTempStep,
				})
			}(i)
		}
		wg.Wait()

		seen := make(map[string]bool, n)
		var unique []string
		for i := range n {
			if errs[i] != nil {
				lastErr = errs[i]
				continue
			}
			if !seen[results[i]] {
				seen[results[i]] = true
				unique = append(unique, results[i])
			}
		}
		if len(unique) > 0 {
			return unique, nil
		}
		d.log.Warn("all variation calls failed", "backend", c.Name(), "error", lastErr)
	}
	return nil, &ExhaustedError{Attempts: len(d.clients), Last: lastErr}
}

// editOnce performs a single backend call. Empty or whitespace-only output is
// a failure even when the call itself reported success.
func (d *Dispatcher) editOnce(ctx context.Context, c Client, req Request) (string, error) {
	out, err := c.Edit(ctx, req)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &CallError{Backend: c.Name(), Message: "empty edited text"}
	}
	return out, nil
}
