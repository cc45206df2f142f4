package services

// Observer receives service level measurements. *metrics.Metrics satisfies it.
type Observer interface {
	ObservePayment(kind, method string, cents int64)
	ObserveRejection(code string)
	ObserveNotificationFailure(msgType string)
	ObserveCache(hit bool)
	ObserveReminder()
}

type nopObserver struct{}

func (nopObserver) ObservePayment(string, string, int64) {}
func (nopObserver) ObserveRejection(string)              {}
func (nopObserver) ObserveNotificationFailure(string)    {}
func (nopObserver) ObserveCache(bool)                    {}
func (nopObserver) ObserveReminder()                     {}

func observerOrNop(o Observer) Observer {
	if o == nil {
		return nopObserver{}
	}
	return o
}
