package fees

import "math"

// Processor fee assumptions for the payout estimate. The actual processing
// fee is only known after settlement; these mirror the processor's published
// standard card pricing.
const (
	ProcessorPercent        = 0.029
	ProcessorFixedMinorUnit = 30
)

// EstimateProcessorFee returns the expected processor processing fee for a
// transaction total, in minor units.
func EstimateProcessorFee(totalMinorUnits int64, processorPercent float64, processorFixedMinorUnits int64) int64 {
	if totalMinorUnits <= 0 {
		return 0
	}
	return int64(math.Round(float64(totalMinorUnits)*processorPercent)) + processorFixedMinorUnits
}

// EstimateNet estimates the net payout to a connected seller account after
// the processor fee and the platform fee, floored at zero. Purely
// informational: it is never sent to the processor and never blocks a
// transaction.
func EstimateNet(totalMinorUnits, platformFeeMinorUnits int64, processorPercent float64, processorFixedMinorUnits int64) int64 {
	processorFee := EstimateProcessorFee(totalMinorUnits, processorPercent, processorFixedMinorUnits)
	net := totalMinorUnits - processorFee - platformFeeMinorUnits
	if net < 0 {
		net = 0
	}
	return net
}

// Info is the fee summary attached to an order when a split-payment link is
// created: what the platform charges, what the processor is expected to take,
// and what the seller should receive. Persisted on the order's extra bag.
type Info struct {
	ApplicationFee        int64     `json:"application_fee"`
	ApplicationFeeDisplay string    `json:"application_fee_display"`
	EstimatedProcessorFee int64     `json:"estimated_processor_fee"`
	EstimatedNet          int64     `json:"estimated_net"`
	Config                Config    `json:"config"`
	Breakdown             Breakdown `json:"breakdown"`
}

// BuildInfo computes the full fee summary for a transaction total under a
// resolved config.
func BuildInfo(totalMinorUnits int64, cfg Config) *Info {
	applicationFee := CalculateFee(totalMinorUnits, cfg)
	return &Info{
		ApplicationFee:        applicationFee,
		ApplicationFeeDisplay: DisplayAmount(applicationFee),
		EstimatedProcessorFee: EstimateProcessorFee(totalMinorUnits, ProcessorPercent, ProcessorFixedMinorUnit),
		EstimatedNet:          EstimateNet(totalMinorUnits, applicationFee, ProcessorPercent, ProcessorFixedMinorUnit),
		Config:                cfg,
		Breakdown:             GetFeeBreakdown(totalMinorUnits, cfg),
	}
}
