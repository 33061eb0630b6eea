// Package rate throttles logins with Redis fixed-window counters. Each attempt
// is taken atomically (INCR, plus PEXPIRE on the first hit) before the
// password is verified. Keys are <prefix>:al:<username>.
package rate
