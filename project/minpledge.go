package project

// MaxNumInputs bounds how many pledge inputs a single claim transaction is
// expected to combine before it risks tripping standardness/size limits.
// An open design question notes the source derives min_pledge from
// goal/MAX_NUM_INPUTS floored by 4x the default minimum relay fee; this is
// documented there as a heuristic subject to change, not a consensus rule,
// and is kept exactly that way here.
const MaxNumInputs = 400

// MinPledgeFloor returns the heuristic floor the design describes:
// whichever is larger of (goal / MaxNumInputs) and 4x the network's dust
// threshold. A project's declared min_pledge must be at least this, so that
// a fully-subscribed project's pledges can all fit in one transaction
// without any single pledge being too small to justify its own input's
// fee overhead.
func MinPledgeFloor(goalSatoshi int64, dustSatoshi int64) int64 {
	byInputCount := goalSatoshi / MaxNumInputs
	byFeeSanity := 4 * dustSatoshi
	if byInputCount > byFeeSanity {
		return byInputCount
	}
	return byFeeSanity
}
