package executor

// LimitExecutor. terusin maksimum limit row dari child.
type LimitExecutor struct {
	child   Executor
	limit   int
	emitted int
}

func NewLimitExecutor(child Executor, limit int) *LimitExecutor {
	return &LimitExecutor{child: child, limit: limit}
}

func (e *LimitExecutor) Init() error {
	e.emitted = 0
	return e.child.Init()
}

func (e *LimitExecutor) Next(tuple *Tuple) (bool, error) {
	if e.emitted >= e.limit {
		return false, nil
	}
	ok, err := e.child.Next(tuple)
	if err != nil || !ok {
		return false, err
	}
	e.emitted++
	return true, nil
}
