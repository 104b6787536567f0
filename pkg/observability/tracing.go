package observability

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// Tracer records graph transactions in X-Ray. Inside Lambda the function
// segment already exists, so transactions become subsegments of it.
type Tracer struct {
	serviceName string
}

func NewTracer(serviceName string) *Tracer {
	return &Tracer{serviceName: serviceName}
}

// Start opens a (sub)segment for name and annotates it so traces can be
// filtered by operation. The returned func closes it with err.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, func(error)) {
	var seg *xray.Segment
	if xray.GetSegment(ctx) != nil {
		ctx, seg = xray.BeginSubsegment(ctx, name)
	} else {
		ctx, seg = xray.BeginSegment(ctx, t.serviceName+"."+name)
	}
	if seg == nil {
		return ctx, func(error) {}
	}

	if err := seg.AddAnnotation("operation", name); err != nil {
		seg.AddError(err)
	}
	return ctx, seg.Close
}
