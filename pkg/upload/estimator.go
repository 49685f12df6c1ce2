package upload

// estimateCeiling is the value the estimate approaches but never reaches.
const estimateCeiling = 95.0

/**************************************************************************************************
** Estimator produces the progress shown while a store call gives no byte feedback. Each tick
** halves the distance to the ceiling: 47, 71, 83, 89, ... The sequence is fixed, so runs are
** reproducible.
**************************************************************************************************/
type Estimator struct {
	current float64
}

// Next returns the next estimate.
func (e *Estimator) Next() int {
	e.current += (estimateCeiling - e.current) / 2
	return int(e.current)
}
