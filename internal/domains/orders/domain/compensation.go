package domain

// RestockResult is the outcome of returning one line item to inventory.
type RestockResult struct {
	ProductID string
	Quantity  int
	Err       error
}

// CompensationReport collects restock outcomes for one compensation run.
type CompensationReport struct {
	Results []RestockResult
	// SettleErr is set when stock was released but clearing it from the
	// order's pending marker failed. Those items stay pending.
	SettleErr error
}

// Restocked returns the product ids whose stock was released.
func (r CompensationReport) Restocked() []string {
	var ids []string
	for _, res := range r.Results {
		if res.Err == nil {
			ids = append(ids, res.ProductID)
		}
	}
	return ids
}

// Failed returns the results that did not succeed.
func (r CompensationReport) Failed() []RestockResult {
	var failed []RestockResult
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Complete reports whether every attempted restock succeeded and was recorded.
func (r CompensationReport) Complete() bool {
	return r.SettleErr == nil && len(r.Failed()) == 0
}
