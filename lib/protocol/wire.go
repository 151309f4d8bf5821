package protocol

// DefaultPathLength is the number of relays in every circuit unless a
// deployment configures otherwise.
const DefaultPathLength = 3

// JSON-RPC method names.
const (
	MethodRegisterNode    = "RegisterNode"
	MethodGetNodeRegistry = "GetNodeRegistry"
	MethodRegisterUser    = "RegisterUser"
	MethodLookupUser      = "LookupUser"

	// MethodDeliver is answered by relays (payload is an onion) and by
	// clients (payload is plaintext), so a relay forwards without knowing
	// which kind of node the next address belongs to.
	MethodDeliver = "Deliver"

	MethodSendMessage = "SendMessage"

	MethodGetLastReceivedEncryptedMessage = "GetLastReceivedEncryptedMessage"
	MethodGetLastReceivedDecryptedMessage = "GetLastReceivedDecryptedMessage"
	MethodGetLastMessageDestination       = "GetLastMessageDestination"
	MethodGetLastReceivedMessage          = "GetLastReceivedMessage"
	MethodGetLastSentMessage              = "GetLastSentMessage"
	MethodGetLastCircuit                  = "GetLastCircuit"

	MethodStatus = "Status"
)

// NodeRecord is a relay as published by the directory. Address is the
// fixed-width routable address (see package address); PublicKey is the
// exported public key string of the directory's crypto suite.
type NodeRecord struct {
	NodeID    int    `json:"nodeId" yaml:"nodeId"`
	PublicKey string `json:"pubKey" yaml:"pubKey"`
	Address   string `json:"address" yaml:"address"`
}

// UserRecord is a client endpoint as published by the directory.
type UserRecord struct {
	UserID  int    `json:"userId" yaml:"userId"`
	Address string `json:"address" yaml:"address"`
}

// RegisterNodeParams are the parameters of RegisterNode.
type RegisterNodeParams struct {
	NodeID    int    `json:"nodeId"`
	PublicKey string `json:"pubKey"`
	Address   string `json:"address"`
}

// NodeRegistry is the result of GetNodeRegistry.
type NodeRegistry struct {
	Nodes []NodeRecord `json:"nodes"`
}

// RegisterUserParams are the parameters of RegisterUser.
type RegisterUserParams struct {
	UserID  int    `json:"userId"`
	Address string `json:"address"`
}

// LookupUserParams are the parameters of LookupUser.
type LookupUserParams struct {
	UserID int `json:"userId"`
}

// DeliverParams are the parameters of Deliver. Payload travels as base64.
type DeliverParams struct {
	Payload []byte `json:"payload"`
}

// SendMessageParams are the parameters of SendMessage.
type SendMessageParams struct {
	Message           string `json:"message"`
	DestinationUserID int    `json:"destinationUserId"`
}

// Accepted is the result of every state-changing method that succeeded.
type Accepted struct {
	Message string `json:"message"`
}

// StringResult wraps a diagnostic string value. Result is nil when the node
// has not recorded a value yet.
type StringResult struct {
	Result *string `json:"result"`
}

// BytesResult wraps a diagnostic byte value.
type BytesResult struct {
	Result []byte `json:"result"`
}

// CircuitResult wraps the node IDs of the last circuit, entry first.
type CircuitResult struct {
	Result []int `json:"result"`
}

// Status is the result of the Status method.
type Status struct {
	Role    string `json:"role" yaml:"role"`
	ID      int    `json:"id" yaml:"id"`
	Address string `json:"address" yaml:"address"`
	State   string `json:"state" yaml:"state"`
	Suite   string `json:"suite" yaml:"suite"`
	// Methods lists the JSON-RPC methods the node answers.
	Methods []string `json:"methods,omitempty" yaml:"methods,omitempty"`
}
