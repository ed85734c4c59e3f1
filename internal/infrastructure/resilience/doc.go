/*
Package resilience provides circuit breakers for upstream calls.

A Breaker counts consecutive failures of the calls it guards. Once the run
reaches the threshold it opens and rejects calls with ErrOpen until the
cooldown elapses. The next call is a probe: success closes the breaker,
failure opens it for another cooldown.

	Closed --[threshold failures]-> Open --[cooldown]-> Half-Open --[probe ok]-> Closed
	                                  ^                     |
	                                  +----[probe failed]---+

A Group keys breakers by upstream, e.g. by host name:

	breakers := resilience.NewGroup(resilience.Settings{
		Threshold: 5,
		Cooldown:  30 * time.Second,
	})
	err := breakers.Do(host, func() error {
		return fetch(ctx, url)
	})
*/
package resilience
