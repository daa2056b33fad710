package payments

import (
	"context"
	"net/http"
	"net/url"

	"github.com/angelmondragon/shopcore-backend/internal/gateways"
	"github.com/angelmondragon/shopcore-backend/pkg/enums"
	"github.com/angelmondragon/shopcore-backend/pkg/metrics"
)

// VerifyReturn settles the redirect-return of a buyer's browser.
func (s *service) VerifyReturn(ctx context.Context, gateway enums.PaymentMethod, params url.Values) (*Outcome, error) {
	adapter, err := s.gateways.Get(gateway)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithGateway(ctx, gateway.String())
	result, err := adapter.Verify(ctx, params)
	if err != nil {
		s.metrics.IncSettlement(gateway.String(), metrics.OutcomeRejected)
		s.logg.Warn(ctx, "gateway return rejected: "+err.Error())
		return nil, err
	}
	result.Gateway = adapter.Name()
	return s.ProcessPaymentResult(ctx, result)
}

func webhookConsumer(gateway enums.PaymentMethod) string {
	return "webhook:" + gateway.String()
}

// HandleWebhook verifies and settles one provider notification and returns
// the reply the provider expects. Delivery ids are marked in the replay guard
// before processing and released again when processing fails so the
// provider's retry is not filtered out.
func (s *service) HandleWebhook(ctx context.Context, gateway enums.PaymentMethod, payload []byte, headers http.Header) (gateways.Ack, error) {
	adapter, err := s.gateways.Get(gateway)
	if err != nil {
		return gateways.Ack{Status: http.StatusNotFound, Body: map[string]string{"status": "unknown gateway"}}, err
	}
	ctx = s.logg.WithGateway(ctx, gateway.String())

	result, err := adapter.Webhook(ctx, payload, headers)
	if err != nil {
		s.metrics.IncSettlement(gateway.String(), metrics.OutcomeRejected)
		s.logg.Warn(ctx, "gateway webhook rejected: "+err.Error())
		return adapter.Ack(err), err
	}
	result.Gateway = adapter.Name()
	if result.Ignored {
		s.metrics.IncSettlement(gateway.String(), metrics.OutcomeIgnored)
		return adapter.Ack(nil), nil
	}

	consumer := webhookConsumer(gateway)
	marked := false
	if s.replay != nil && result.EventID != "" {
		already, err := s.replay.CheckAndMarkProcessed(ctx, consumer, result.EventID)
		switch {
		case err != nil:
			s.logg.Warn(ctx, "webhook replay guard unavailable: "+err.Error())
		case already:
			s.metrics.IncSettlement(gateway.String(), metrics.OutcomeReplayed)
			s.logg.Info(s.logg.WithField(ctx, "event_id", result.EventID), "duplicate webhook skipped")
			return adapter.Ack(nil), nil
		default:
			marked = true
		}
	}

	if _, err := s.ProcessPaymentResult(ctx, result); err != nil {
		if marked {
			if delErr := s.replay.Delete(ctx, consumer, result.EventID); delErr != nil {
				s.logg.Warn(ctx, "release webhook replay marker: "+delErr.Error())
			}
		}
		s.logg.Error(s.logg.WithField(ctx, "event_id", result.EventID), "webhook settlement failed", err)
		return adapter.Ack(err), err
	}
	if marked {
		if err := s.replay.Confirm(ctx, consumer, result.EventID); err != nil {
			s.logg.Warn(ctx, "confirm webhook replay marker: "+err.Error())
		}
	}
	return adapter.Ack(nil), nil
}
