package editor

import (
	"context"
	"fmt"
)

// The refinement chain runs three calls on one backend: the initial edit,
// a self-review of that edit against the original, and a final polish.
// Temperature steps up 0.1 per stage, capped at 1.0.

const reviewInstruction = `You are reviewing your own edit of a passage. Compare the edit against the original, fix anything the edit got wrong or made worse, and keep every improvement that serves the editing instruction. Respond with ONLY the corrected passage, no commentary.`

const polishInstruction = `You are doing a final polish pass on an edited passage. Smooth any remaining awkward phrasing while staying faithful to the original's meaning and the editing instruction. Respond with ONLY the final passage, no commentary.`

const refineStepPrompt = `Editing instruction: %s

Original passage:
---
%s
---

Current version:
---
%s
---`

func (d *Dispatcher) refineChain(ctx context.Context, c Client, text, instruction string, baseTemp float64) (string, error) {
	draft, err := d.editOnce(ctx, c, Request{
		Instruction: instruction,
		Text:        text,
		Temperature: baseTemp,
	})
	if err != nil {
		return "", fmt.Errorf("refine step 1 (edit): %w", err)
	}

	reviewed, err := d.editOnce(ctx, c, Request{
		Instruction: reviewInstruction,
		Text:        fmt.Sprintf(refineStepPrompt, instruction, text, draft),
		Temperature: capTemp(baseTemp + 0.1),
	})
	if err != nil {
		return "", fmt.Errorf("refine step 2 (review): %w", err)
	}

	polished, err := d.editOnce(ctx, c, Request{
		Instruction: polishInstruction,
		Text:        fmt.Sprintf(refineStepPrompt, instruction, text, reviewed),
		Temperature: capTemp(baseTemp + 0.2),
	})
	if err != nil {
		return "", fmt.Errorf("refine step 3 (polish): %w", err)
	}
	return polished, nil
}

func capTemp(t float64) float64 {
	if t > 1.0 {
		return 1.0
	}
	return t
}
