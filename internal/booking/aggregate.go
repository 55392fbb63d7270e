package booking

// Aggregate derives the orchestration-level status from a complete set of
// settled legs. It is the only place the derivation lives:
//
//	COMPLETED  — every leg confirmed
//	FAILED     — no leg confirmed
//	PARTIAL    — some but not all legs confirmed
//
// Callers must only invoke it after every leg has settled; a partial set
// would derive a status the remaining legs could still contradict.
func Aggregate(legs []BookingLeg) Status {
	if len(legs) == 0 {
		return StatusFailed
	}

	confirmed := 0
	for _, leg := range legs {
		if leg.Status == LegConfirmed {
			confirmed++
		}
	}

	switch confirmed {
	case len(legs):
		return StatusCompleted
	case 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}
