// Package anchor wraps the L1 contract that stores the running L2 state
// hash and the event log the Fullnode replays (section 3's "Anchor
// chain"). The contract's bytecode is an input (section 1's non-goals);
// this package only knows its ABI.
package anchor

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// rollupABIJSON declares the anchor contract's interface from section 6.
// Response is the solidity shape of types.IncomingCallResponse; the two
// commit methods cover the plain L2-block and L2-block-with-outgoing-calls
// cases described in section 4.1's proof-signing rules.
const rollupABIJSON = `[
	{"type":"function","name":"l2BlockHash","stateMutability":"view","inputs":[],"outputs":[{"type":"bytes32"}]},
	{"type":"function","name":"l2BlockNumber","stateMutability":"view","inputs":[],"outputs":[{"type":"uint256"}]},
	{"type":"function","name":"getProxyAddress","stateMutability":"view","inputs":[{"name":"l2Address","type":"address"}],"outputs":[{"type":"address"}]},
	{"type":"function","name":"isProxyDeployed","stateMutability":"view","inputs":[{"name":"l2Address","type":"address"}],"outputs":[{"type":"bool"}]},
	{"type":"function","name":"deployProxy","stateMutability":"nonpayable","inputs":[{"name":"l2Address","type":"address"}],"outputs":[{"type":"address"}]},
	{"type":"function","name":"registerIncomingCall","stateMutability":"nonpayable","inputs":[
		{"name":"l2Address","type":"address"},
		{"name":"preStateHash","type":"bytes32"},
		{"name":"callData","type":"bytes"},
		{"name":"response","type":"tuple","components":[
			{"name":"preOutgoingCallsStateHash","type":"bytes32"},
			{"name":"outgoingCalls","type":"tuple[]","components":[
				{"name":"from","type":"address"},
				{"name":"target","type":"address"},
				{"name":"value","type":"uint256"},
				{"name":"gas","type":"uint256"},
				{"name":"data","type":"bytes"},
				{"name":"postCallStateHash","type":"bytes32"}
			]},
			{"name":"expectedResults","type":"bytes[]"},
			{"name":"returnValue","type":"bytes"},
			{"name":"finalStateHash","type":"bytes32"}
		]},
		{"name":"proof","type":"bytes"}
	],"outputs":[]},
	{"type":"function","name":"getResponseKey","stateMutability":"view","inputs":[
		{"name":"l2Address","type":"address"},
		{"name":"preStateHash","type":"bytes32"},
		{"name":"callData","type":"bytes"}
	],"outputs":[{"type":"bytes32"}]},
	{"type":"function","name":"incomingCallRegistered","stateMutability":"view","inputs":[{"name":"key","type":"bytes32"}],"outputs":[{"type":"bool"}]},
	{"type":"function","name":"incomingCallResponses","stateMutability":"view","inputs":[{"name":"key","type":"bytes32"}],"outputs":[{"type":"tuple","components":[
		{"name":"preOutgoingCallsStateHash","type":"bytes32"},
		{"name":"outgoingCalls","type":"tuple[]","components":[
			{"name":"from","type":"address"},
			{"name":"target","type":"address"},
			{"name":"value","type":"uint256"},
			{"name":"gas","type":"uint256"},
			{"name":"data","type":"bytes"},
			{"name":"postCallStateHash","type":"bytes32"}
		]},
		{"name":"expectedResults","type":"bytes[]"},
		{"name":"returnValue","type":"bytes"},
		{"name":"finalStateHash","type":"bytes32"}
	]}]},
	{"type":"function","name":"commitL2Block","stateMutability":"nonpayable","inputs":[
		{"name":"prevHash","type":"bytes32"},
		{"name":"rlpEncodedTx","type":"bytes"},
		{"name":"finalStateHash","type":"bytes32"},
		{"name":"proof","type":"bytes"}
	],"outputs":[]},
	{"type":"function","name":"commitL2BlockWithOutgoingCalls","stateMutability":"nonpayable","inputs":[
		{"name":"prevHash","type":"bytes32"},
		{"name":"rlpEncodedTx","type":"bytes"},
		{"name":"preOutgoingCallsStateHash","type":"bytes32"},
		{"name":"outgoingCalls","type":"tuple[]","components":[
			{"name":"from","type":"address"},
			{"name":"target","type":"address"},
			{"name":"value","type":"uint256"},
			{"name":"gas","type":"uint256"},
			{"name":"data","type":"bytes"},
			{"name":"postCallStateHash","type":"bytes32"}
		]},
		{"name":"expectedResults","type":"bytes[]"},
		{"name":"finalStateHash","type":"bytes32"},
		{"name":"proof","type":"bytes"}
	],"outputs":[]},
	{"type":"event","name":"L2BlockProcessed","inputs":[
		{"name":"prevHash","type":"bytes32","indexed":true},
		{"name":"newHash","type":"bytes32","indexed":true},
		{"name":"rlpEncodedTx","type":"bytes","indexed":false}
	]},
	{"type":"event","name":"IncomingCallHandled","inputs":[
		{"name":"prevHash","type":"bytes32","indexed":true},
		{"name":"newHash","type":"bytes32","indexed":true},
		{"name":"l2Address","type":"address","indexed":true},
		{"name":"l1Caller","type":"address","indexed":false},
		{"name":"callData","type":"bytes","indexed":false}
	]}
]`

// RollupABI is the parsed anchor contract interface, shared by Client and
// its event decoders.
var RollupABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(rollupABIJSON))
	if err != nil {
		panic("anchor: invalid embedded ABI: " + err.Error())
	}
	RollupABI = parsed
}
