package booking

import "github.com/Domenick1991/travelgo/config"

// ConfigOptions translates the booking section of the config file.
func ConfigOptions(cfg config.BookingConfig) []BookingServiceOption {
	return []BookingServiceOption{
		WithFlow(Flow(cfg.Flow)),
		WithCancellationWindow(cfg.CancellationWindowDuration()),
		WithPartialRefundPercent(cfg.PartialRefundPercent),
		WithSigningSecret(cfg.SigningSecret),
	}
}
