package main

import (
	"fmt"

	"github.com/silkrt/silk/envelope"
	"github.com/silkrt/silk/value"
)

// parseBridgeLine treats line as a raw JSON args value and wraps it in
// an InvokeRequest addressed to a fixed diagnostic command name, since
// "bridge exec" talks to one child directly rather than routing by cmd.
func parseBridgeLine(callback int64, line []byte) (envelope.InvokeRequest, error) {
	var args value.Value
	if err := args.UnmarshalJSON(line); err != nil {
		return envelope.InvokeRequest{}, fmt.Errorf("silkhost: invalid args JSON: %w", err)
	}
	return envelope.InvokeRequest{
		Callback: callback,
		Cmd:      "bridge:exec",
		Args:     args,
	}, nil
}
