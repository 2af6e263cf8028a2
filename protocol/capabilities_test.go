package protocol

import "testing"

func TestNewCapabilitiesIncludesMandatoryBits(t *testing.T) {
	c := NewCapabilities(0)
	if !c.Has(ClientProtocol41) {
		t.Error("expected ClientProtocol41 to always be requested")
	}
	if !c.Has(ClientSecureConnection) {
		t.Error("expected ClientSecureConnection to always be requested")
	}
}

func TestCapabilitiesWantBeforeFreeze(t *testing.T) {
	c := NewCapabilities(0)
	c.Want(ClientConnectWithDB)
	if !c.Has(ClientConnectWithDB) {
		t.Error("expected Want to set the bit before freezing")
	}
}

func TestCapabilitiesWantIgnoredAfterFreeze(t *testing.T) {
	c := NewCapabilities(0)
	c.Freeze()
	c.Want(ClientConnectWithDB)
	if c.Has(ClientConnectWithDB) {
		t.Error("expected Want to be a no-op after Freeze")
	}
}

func TestCapabilitiesNegotiateIntersectsAndFreezes(t *testing.T) {
	c := NewCapabilities(ClientConnectWithDB | ClientMultiStatements)
	server := mandatoryClientCapabilities | ClientConnectWithDB // server lacks ClientMultiStatements

	c.Negotiate(server)

	if !c.Frozen() {
		t.Fatal("expected Negotiate to freeze the capability set")
	}
	if !c.Has(ClientConnectWithDB) {
		t.Error("expected ClientConnectWithDB to survive negotiation")
	}
	if c.Has(ClientMultiStatements) {
		t.Error("expected ClientMultiStatements to be dropped, server didn't advertise it")
	}
	if !c.Has(ClientProtocol41) {
		t.Error("expected mandatory bits to survive negotiation")
	}
}

func TestCapabilitiesNegotiateIsNoOpOnceFrozen(t *testing.T) {
	c := NewCapabilities(ClientConnectWithDB)
	c.Negotiate(mandatoryClientCapabilities | ClientConnectWithDB)
	before := c.Bits()

	c.Negotiate(mandatoryClientCapabilities) // would otherwise drop ClientConnectWithDB
	if c.Bits() != before {
		t.Error("expected a second Negotiate call after freezing to be a no-op")
	}
}
