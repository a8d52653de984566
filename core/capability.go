package core

// CapabilityKind categorizes the operations a provider performs. The set is
// closed; registering a provider with an unknown kind fails at construction
// time rather than at call time.
type CapabilityKind string

const (
	// CapabilityCompletion covers language completion endpoints.
	CapabilityCompletion CapabilityKind = "completion"
	// CapabilityTranscription covers speech-to-text endpoints.
	CapabilityTranscription CapabilityKind = "transcription"
	// CapabilitySynthesis covers text-to-speech endpoints.
	CapabilitySynthesis CapabilityKind = "synthesis"
	// CapabilityTelephony covers outbound/inbound call endpoints.
	CapabilityTelephony CapabilityKind = "telephony"
	// CapabilityVectorStore covers vector search endpoints.
	CapabilityVectorStore CapabilityKind = "vector-store"
	// CapabilityStructuredStore covers structured storage endpoints.
	CapabilityStructuredStore CapabilityKind = "structured-store"
	// CapabilityMessaging covers outbound messaging endpoints.
	CapabilityMessaging CapabilityKind = "messaging"
	// CapabilityWebSearch covers web search endpoints.
	CapabilityWebSearch CapabilityKind = "web-search"
)

// Operation names a single logical action performed against a provider.
type Operation string

const (
	// OpComplete generates a completion for a prompt.
	OpComplete Operation = "complete"
	// OpTranscribe converts audio to text.
	OpTranscribe Operation = "transcribe"
	// OpSynthesize converts text to audio.
	OpSynthesize Operation = "synthesize"
	// OpDial initiates an outbound call.
	OpDial Operation = "dial"
	// OpHangup terminates an active call.
	OpHangup Operation = "hangup"
	// OpSearch queries a vector store or web search provider.
	OpSearch Operation = "search"
	// OpUpsert writes vectors into a vector store.
	OpUpsert Operation = "upsert"
	// OpGet reads a record from a structured store.
	OpGet Operation = "get"
	// OpPut writes a record into a structured store.
	OpPut Operation = "put"
	// OpQuery runs a filtered query against a structured store.
	OpQuery Operation = "query"
	// OpDelete removes a record or vector.
	OpDelete Operation = "delete"
	// OpSend delivers an outbound message.
	OpSend Operation = "send"
)

// operations is the closed per-kind operation enumeration. Membership is
// validated before dispatch so unknown operations surface as
// ErrUnknownOperation instead of opaque provider errors.
var operations = map[CapabilityKind][]Operation{
	CapabilityCompletion:      {OpComplete},
	CapabilityTranscription:   {OpTranscribe},
	CapabilitySynthesis:       {OpSynthesize},
	CapabilityTelephony:       {OpDial, OpHangup},
	CapabilityVectorStore:     {OpSearch, OpUpsert, OpDelete},
	CapabilityStructuredStore: {OpGet, OpPut, OpQuery, OpDelete},
	CapabilityMessaging:       {OpSend},
	CapabilityWebSearch:       {OpSearch},
}

// Valid reports whether the kind belongs to the closed capability enumeration.
func (k CapabilityKind) Valid() bool {
	_, ok := operations[k]
	return ok
}

// Supports reports whether the operation is part of the kind's enumeration.
func (k CapabilityKind) Supports(op Operation) bool {
	for _, o := range operations[k] {
		if o == op {
			return true
		}
	}
	return false
}

// Operations returns a copy of the kind's operation enumeration.
func (k CapabilityKind) Operations() []Operation {
	ops := make([]Operation, len(operations[k]))
	copy(ops, operations[k])
	return ops
}
