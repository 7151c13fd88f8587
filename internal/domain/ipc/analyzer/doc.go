// Package analyzer keeps a sliding window of IPC operation samples and
// derives latency percentiles, throughput and transport usage from it.
//
// The analyzer is independent of the IPC service; callers such as the
// workload driver feed it one sample per measured operation:
//
//	a := analyzer.New(1000)
//	a.AddSample(analyzer.Sample{LatencyNs: 850, Transport: message.TransportLockFreeQueue})
//	for _, hint := range a.OptimizationSuggestions() {
//	    log.Println(hint)
//	}
package analyzer
