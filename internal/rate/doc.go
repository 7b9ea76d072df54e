// Package rate throttles failed logins with fixed-window Redis counters.
//
// Keys live under the session store prefix:
//   - <prefix>:rl:id:<digest> counts failures per identifier
//   - <prefix>:rl:ip:<ip> counts failures per client IP when enabled
package rate
