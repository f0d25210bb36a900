package verify

import (
	"context"

	"github.com/benithors/resellerkit/internal/registrar"
	"go.uber.org/zap"
)

// Register places the registration and then verifies it. The acknowledgment
// is returned for the order record but never decides the outcome: a rejected
// call is failed, an accepted one is whatever the availability recheck says.
func (v *Verifier) Register(ctx context.Context, orders registrar.Orders, req registrar.RegisterRequest) (registrar.Ack, Result) {
	ack, err := orders.Register(ctx, req)
	if err != nil {
		return registrar.Ack{}, v.finish(Result{
			Domain: req.Domain,
			Status: StatusFailed,
			Reason: "register call failed: " + err.Error(),
		})
	}
	v.log.Debug("register accepted, waiting before recheck",
		zap.String("domain", req.Domain),
		zap.String("entity_id", ack.EntityID),
		zap.Duration("settle", v.settleDelay),
	)

	if err := sleep(ctx, v.settleDelay); err != nil {
		return ack, v.notAttempted(req.Domain, err)
	}
	return ack, v.Verify(ctx, req.Domain)
}
