// Package sampler records application usage by polling a process source.
//
// Two loops run independently:
//   - the active loop lists running applications every active delay (5s by
//     default) and writes one interval per executable path, from the
//     earliest process start until now;
//   - the focus loop asks for the focused application every focus delay
//     (1s by default) and writes the interval since it gained focus.
//
// Every poll re-sends the growing interval with the same start, and the store
// upserts on (application, start), so an interval is extended in place until
// the process exits.
//
// Example usage:
//
//	st, err := store.Open(ctx, "~/.apptime/apptime.db")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer st.Close()
//
//	s, err := sampler.New(st, procsrc.NewSystem())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	// Run in the foreground
//	if err := s.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer s.Stop()
//
//	// Or as a daemon
//	if err := sampler.StartDaemon("/tmp/apptime.pid", "/tmp/apptime.out", "watch", "--daemon-child"); err != nil {
//		log.Fatal(err)
//	}
package sampler
