package oid

import "testing"

func TestU_OID_NameRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		oid  string
	}{
		{"sha256", "2.16.840.1.101.3.4.2.1"},
		{"SHA256withRSA", "1.2.840.113549.1.1.11"},
		{"keyUsage", "2.5.29.15"},
		{"signingCertificateV2", "1.2.840.113549.1.9.16.2.47"},
		{"sigPolicyId", "1.2.840.113549.1.9.16.2.15"},
		{"ML-DSA-65", "2.16.840.1.101.3.4.3.18"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FromName(tt.name)
			if !ok || got != tt.oid {
				t.Errorf("FromName(%s) = %s, %v", tt.name, got, ok)
			}
			if n := NameOrOID(tt.oid); n != tt.name {
				t.Errorf("NameOrOID(%s) = %s, want %s", tt.oid, n, tt.name)
			}
		})
	}
}

func TestU_OID_UnknownRendersDotted(t *testing.T) {
	if got := NameOrOID("1.2.3.4.5"); got != "1.2.3.4.5" {
		t.Errorf("NameOrOID() = %s", got)
	}
	if _, ok := Name("1.2.3.4.5"); ok {
		t.Error("Name() should report unknown OID")
	}
}

func TestU_OID_AttributeShortNames(t *testing.T) {
	if o, ok := AttributeOID("cn"); !ok || o != "2.5.4.3" {
		t.Errorf("AttributeOID(cn) = %s, %v", o, ok)
	}
	if o, ok := AttributeOID("emailAddress"); !ok || o != "1.2.840.113549.1.9.1" {
		t.Errorf("AttributeOID(emailAddress) = %s, %v", o, ok)
	}
	if n, ok := AttributeShortName("2.5.4.11"); !ok || n != "OU" {
		t.Errorf("AttributeShortName(2.5.4.11) = %s, %v", n, ok)
	}
}

func TestU_OID_Resolve(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"sha1", "1.3.14.3.2.26", true},
		{"1.2.3", "1.2.3", true},
		{"prime256v1", "1.2.840.10045.3.1.7", true},
		{"nope", "", false},
		{"1..2", "", false},
		{"1.", "", false},
	}
	for _, tt := range tests {
		got, ok := Resolve(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("Resolve(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
