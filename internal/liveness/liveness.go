// Package liveness decides whether a registered device is online.
//
// A ping request flows through three pieces: DeviceLookup resolves the
// (tenant, device) pair against the registry, an ActivityOracle reports the
// device's last activity, and the liveness predicate compares that timestamp
// with the configured window. Evaluator ties them together and always
// produces a Verdict; faults are folded into the verdict message instead of
// being returned to the caller.
package liveness

import "time"

// DefaultWindow is how long after its last activity a device still counts
// as online.
const DefaultWindow = 5 * time.Minute

// Verdict messages.
const (
	MessageOnline   = "Device is online"
	MessageOffline  = "Device is offline"
	MessageNotFound = "Device not found"
	errorPrefix     = "Error: "
)

// Verdict is the result of a single liveness evaluation.
// LastSeen is epoch milliseconds and is zero only when the device could not
// be resolved or the evaluation failed; Online is then always false.
type Verdict struct {
	Online   bool   `json:"online"`
	LastSeen int64  `json:"lastSeen"`
	Message  string `json:"message"`
}

func notFoundVerdict() Verdict {
	return Verdict{Online: false, LastSeen: 0, Message: MessageNotFound}
}

func errorVerdict(desc string) Verdict {
	return Verdict{Online: false, LastSeen: 0, Message: errorPrefix + desc}
}
