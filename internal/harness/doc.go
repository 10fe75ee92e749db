// Package harness runs YAML bench scenarios against simulated valid/ready
// links.
//
// A scenario declares links, optional relays between them, steps driven
// from the bench and assertions over the observed transfer trace.
//
// # Scenario Format
//
//	name: relay_forwards
//	description: "A relay forwards every message in order"
//	clock:
//	  period_ns: 10
//	links:
//	  - name: ingress
//	    schema: Message
//	  - name: egress
//	    schema: Message
//	    capacity: 4
//	relays:
//	  - name: fwd
//	    from: ingress
//	    to: egress
//	steps:
//	  - send:
//	      link: ingress
//	      values:
//	        - [0x10, 1, 0xcafe]          # quick order
//	        - {meta-address: 0x11, meta-tag: 2, data: 0}
//	  - expect:
//	      link: egress
//	      values: [[0x10, 1, 0xcafe], [0x11, 2, 0]]
//	assertions:
//	  - type: transfer_order
//	    links: [ingress, egress]
//	  - type: stored
//	    where: {link: egress, seq: 4}
//	    expect: {producer: fwd, consumer: TB}
//
// Each link gets the signals <name>_valid, <name>_ready and <name>_data.
// A link not driven by a relay is driven from the bench; a link no relay
// consumes is drained by the bench.
//
// # Assertion Types
//
//   - transfer_contains: some transfer on a link carries the given fields
//   - transfer_order: the first transfers of the given links appear in order
//   - transfer_count: a link carried exactly N transfers
//   - stored: one stored transfer row matches where and has the expected columns
//
// # Deterministic Testing
//
// Every run uses a fixed run ID (scenario.run_id or "test-run-default"), a
// private in-memory store and simulated time only, so the same scenario
// always produces the same trace. Golden snapshots compare that trace as
// canonical JSON lines.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/relay.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, e := range result.Errors {
//	        log.Println(e)
//	    }
//	}
package harness
