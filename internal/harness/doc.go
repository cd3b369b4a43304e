// Package harness runs reels offline against scripted responses.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: session_flow
//	description: "Session id captured by one frame is sent by the next"
//	run_id: run-session          # optional, pins the run ID for golden traces
//	reel: session.vr.json        # path (relative to the scenario) or inline reel
//	cut: { USER: ada }           # optional, merged over the reel's cut
//	strict: false
//	responses:
//	  create: { status: 200, body: { session_id: sess-42 } }
//	  poll:                      # a list serves repeated frame names in order
//	    - { status: 202 }
//	    - { status: 200 }
//	expect:
//	  pass: false
//	  error_code: RESPONSE_MISMATCH
//	  failed_frame: poll
//	  cut: { SESSION_ID: sess-42 }
//	assertions:
//	  - type: trace_contains
//	    frame: use
//	    request: { body: { token: "${ANY}" } }
//	  - type: trace_order
//	    frames: [create, use]
//	  - type: trace_count
//	    frame: poll
//	    count: 2
//
// # Deterministic Testing
//
// Every scenario runs with a fixed run ID, a deterministic logical clock and
// a fresh in-memory take log, so the trace read back from the log is
// byte-identical across runs and can be compared against golden files.
package harness
