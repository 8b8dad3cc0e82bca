package metrics

// Collector defines the interface for collecting session metrics
type Collector interface {
	RecordEventEmitted(eventType string)
	RecordEventReceived(eventType string)
	RecordEventDropped(reason string)
	RecordHandlerFailure(eventType string)
	RecordStoreWrite(op string, success bool)
	RecordTimerFinished()
	SetGatewayConnections(n int)
}

// NoOp is a no-op implementation for when metrics aren't needed
type NoOp struct{}

func (NoOp) RecordEventEmitted(eventType string)      {}
func (NoOp) RecordEventReceived(eventType string)     {}
func (NoOp) RecordEventDropped(reason string)         {}
func (NoOp) RecordHandlerFailure(eventType string)    {}
func (NoOp) RecordStoreWrite(op string, success bool) {}
func (NoOp) RecordTimerFinished()                     {}
func (NoOp) SetGatewayConnections(n int)              {}

// OrNoOp returns c, or NoOp when c is nil.
func OrNoOp(c Collector) Collector {
	if c == nil {
		return NoOp{}
	}
	return c
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
