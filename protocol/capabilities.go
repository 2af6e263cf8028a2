package protocol

// CapabilityFlag is a single bit in the 32-bit MySQL capability set
// negotiated between client and server during the handshake.
type CapabilityFlag uint32

// Capability bits used by this client. Values match the wire positions
// defined by Protocol::HandshakeResponse41; unlisted server bits are
// preserved but never interpreted.
const (
	ClientLongPassword               CapabilityFlag = 0x00000001
	ClientFoundRows                  CapabilityFlag = 0x00000002
	ClientLongFlag                   CapabilityFlag = 0x00000004
	ClientConnectWithDB              CapabilityFlag = 0x00000008
	ClientNoSchema                   CapabilityFlag = 0x00000010
	ClientCompress                   CapabilityFlag = 0x00000020
	ClientODBC                       CapabilityFlag = 0x00000040
	ClientLocalFiles                 CapabilityFlag = 0x00000080
	ClientIgnoreSpace                CapabilityFlag = 0x00000100
	ClientProtocol41                 CapabilityFlag = 0x00000200
	ClientInteractive                CapabilityFlag = 0x00000400
	ClientSSL                        CapabilityFlag = 0x00000800
	ClientIgnoreSIGPIPE              CapabilityFlag = 0x00001000
	ClientTransactions               CapabilityFlag = 0x00002000
	ClientReserved                   CapabilityFlag = 0x00004000
	ClientSecureConnection           CapabilityFlag = 0x00008000
	ClientMultiStatements            CapabilityFlag = 0x00010000
	ClientMultiResults               CapabilityFlag = 0x00020000
	ClientPSMultiResults              CapabilityFlag = 0x00040000
	ClientPluginAuth                 CapabilityFlag = 0x00080000
	ClientConnectAttrs               CapabilityFlag = 0x00100000
	ClientPluginAuthLenencClientData CapabilityFlag = 0x00200000
	ClientCanHandleExpiredPasswords  CapabilityFlag = 0x00400000
	ClientSessionTrack               CapabilityFlag = 0x00800000
	ClientDeprecateEOF               CapabilityFlag = 0x01000000
	ClientOptionalResultsetMetadata  CapabilityFlag = 0x02000000
	ClientZstdCompressionAlgorithm   CapabilityFlag = 0x04000000
	ClientQueryAttributes            CapabilityFlag = 0x08000000
	ClientCapabilityExtension        CapabilityFlag = 0x20000000
	ClientSSLVerifyServerCert        CapabilityFlag = 0x40000000
	ClientRememberOptions            CapabilityFlag = 0x80000000
)

// mandatoryClientCapabilities are always requested by this client,
// regardless of what the caller configures.
const mandatoryClientCapabilities = ClientProtocol41 |
	ClientSecureConnection |
	ClientPluginAuth |
	ClientPluginAuthLenencClientData |
	ClientTransactions |
	ClientLongPassword

// Capabilities is the negotiated capability set for one connection. Once
// frozen (after the handshake response is sent) it must never change.
type Capabilities struct {
	bits   CapabilityFlag
	frozen bool
}

// NewCapabilities returns a capability set a caller can still mutate,
// seeded with the bits this client always requests.
func NewCapabilities(wanted CapabilityFlag) *Capabilities {
	return &Capabilities{bits: wanted | mandatoryClientCapabilities}
}

// Has reports whether flag is set.
func (c *Capabilities) Has(flag CapabilityFlag) bool {
	return c.bits&flag != 0
}

// Want sets an additional bit before negotiation; a no-op once frozen.
func (c *Capabilities) Want(flag CapabilityFlag) {
	if c.frozen {
		return
	}
	c.bits |= flag
}

// Negotiate intersects the client's wanted set with the server's advertised
// set, preserving the mandatory bits, and freezes the result. Negotiation
// is monotone: the result is always a subset of the client's prior set.
func (c *Capabilities) Negotiate(server CapabilityFlag) {
	if c.frozen {
		return
	}
	c.bits = (c.bits & server) | (mandatoryClientCapabilities & server)
	c.frozen = true
}

// Freeze locks the capability set without intersecting against a server
// value; used in tests where the final negotiated set is already known.
func (c *Capabilities) Freeze() { c.frozen = true }

// Bits returns the raw 32-bit flag set for wire encoding.
func (c *Capabilities) Bits() CapabilityFlag { return c.bits }

// Frozen reports whether the set can no longer change.
func (c *Capabilities) Frozen() bool { return c.frozen }
