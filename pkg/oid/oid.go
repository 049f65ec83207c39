// Package oid holds the process-wide object identifier tables used to
// translate between dotted OIDs and their short names.
//
// The tables are built once at package initialization and never mutated,
// so every lookup is safe for concurrent use.
package oid

import (
	"sort"
	"strings"
)

type entry struct {
	name string
	oid  string
}

// Hash algorithms.
var hashes = []entry{
	{"md5", "1.2.840.113549.2.5"},
	{"sha1", "1.3.14.3.2.26"},
	{"sha224", "2.16.840.1.101.3.4.2.4"},
	{"sha256", "2.16.840.1.101.3.4.2.1"},
	{"sha384", "2.16.840.1.101.3.4.2.2"},
	{"sha512", "2.16.840.1.101.3.4.2.3"},
	{"sha3-256", "2.16.840.1.101.3.4.2.8"},
	{"sha3-384", "2.16.840.1.101.3.4.2.9"},
	{"sha3-512", "2.16.840.1.101.3.4.2.10"},
}

// Signature and public key algorithms.
var algorithms = []entry{
	{"rsaEncryption", "1.2.840.113549.1.1.1"},
	{"MD5withRSA", "1.2.840.113549.1.1.4"},
	{"SHA1withRSA", "1.2.840.113549.1.1.5"},
	{"SHA224withRSA", "1.2.840.113549.1.1.14"},
	{"SHA256withRSA", "1.2.840.113549.1.1.11"},
	{"SHA384withRSA", "1.2.840.113549.1.1.12"},
	{"SHA512withRSA", "1.2.840.113549.1.1.13"},
	{"SHA256withRSAandMGF1", "1.2.840.113549.1.1.10"},
	{"ecPublicKey", "1.2.840.10045.2.1"},
	{"SHA1withECDSA", "1.2.840.10045.4.1"},
	{"SHA224withECDSA", "1.2.840.10045.4.3.1"},
	{"SHA256withECDSA", "1.2.840.10045.4.3.2"},
	{"SHA384withECDSA", "1.2.840.10045.4.3.3"},
	{"SHA512withECDSA", "1.2.840.10045.4.3.4"},
	{"SHA1withDSA", "1.2.840.10040.4.3"},
	{"SHA256withDSA", "2.16.840.1.101.3.4.3.2"},
	{"Ed25519", "1.3.101.112"},
	{"Ed448", "1.3.101.113"},
	{"ML-DSA-44", "2.16.840.1.101.3.4.3.17"},
	{"ML-DSA-65", "2.16.840.1.101.3.4.3.18"},
	{"ML-DSA-87", "2.16.840.1.101.3.4.3.19"},
	{"mgf1", "1.2.840.113549.1.1.8"},
}

// Named elliptic curves.
var curves = []entry{
	{"secp256r1", "1.2.840.10045.3.1.7"},
	{"secp384r1", "1.3.132.0.34"},
	{"secp521r1", "1.3.132.0.35"},
	{"secp256k1", "1.3.132.0.10"},
}

// X.509 extensions.
var extensions = []entry{
	{"subjectDirectoryAttributes", "2.5.29.9"},
	{"subjectKeyIdentifier", "2.5.29.14"},
	{"keyUsage", "2.5.29.15"},
	{"subjectAltName", "2.5.29.17"},
	{"issuerAltName", "2.5.29.18"},
	{"basicConstraints", "2.5.29.19"},
	{"cRLNumber", "2.5.29.20"},
	{"cRLReason", "2.5.29.21"},
	{"nameConstraints", "2.5.29.30"},
	{"cRLDistributionPoints", "2.5.29.31"},
	{"certificatePolicies", "2.5.29.32"},
	{"anyPolicy", "2.5.29.32.0"},
	{"policyMappings", "2.5.29.33"},
	{"authorityKeyIdentifier", "2.5.29.35"},
	{"policyConstraints", "2.5.29.36"},
	{"extKeyUsage", "2.5.29.37"},
	{"inhibitAnyPolicy", "2.5.29.54"},
	{"authorityInfoAccess", "1.3.6.1.5.5.7.1.1"},
	{"subjectInfoAccess", "1.3.6.1.5.5.7.1.11"},
	{"ocspNoCheck", "1.3.6.1.5.5.7.48.1.5"},
	{"ct-precert-scts", "1.3.6.1.4.1.11129.2.4.2"},
}

// Extended key usages, access methods and policy qualifiers.
var pkix = []entry{
	{"anyExtendedKeyUsage", "2.5.29.37.0"},
	{"serverAuth", "1.3.6.1.5.5.7.3.1"},
	{"clientAuth", "1.3.6.1.5.5.7.3.2"},
	{"codeSigning", "1.3.6.1.5.5.7.3.3"},
	{"emailProtection", "1.3.6.1.5.5.7.3.4"},
	{"timeStamping", "1.3.6.1.5.5.7.3.8"},
	{"ocspSigning", "1.3.6.1.5.5.7.3.9"},
	{"ocsp", "1.3.6.1.5.5.7.48.1"},
	{"caIssuers", "1.3.6.1.5.5.7.48.2"},
	{"cps", "1.3.6.1.5.5.7.2.1"},
	{"unotice", "1.3.6.1.5.5.7.2.2"},
}

// CMS content types, attributes and CAdES attributes.
var cms = []entry{
	{"data", "1.2.840.113549.1.7.1"},
	{"signedData", "1.2.840.113549.1.7.2"},
	{"envelopedData", "1.2.840.113549.1.7.3"},
	{"digestedData", "1.2.840.113549.1.7.5"},
	{"encryptedData", "1.2.840.113549.1.7.6"},
	{"authEnvelopedData", "1.2.840.113549.1.9.16.1.23"},
	{"tstinfo", "1.2.840.113549.1.9.16.1.4"},
	{"contentType", "1.2.840.113549.1.9.3"},
	{"messageDigest", "1.2.840.113549.1.9.4"},
	{"signingTime", "1.2.840.113549.1.9.5"},
	{"counterSignature", "1.2.840.113549.1.9.6"},
	{"signingCertificate", "1.2.840.113549.1.9.16.2.12"},
	{"signatureTimeStampToken", "1.2.840.113549.1.9.16.2.14"},
	{"sigPolicyId", "1.2.840.113549.1.9.16.2.15"},
	{"commitmentTypeIndication", "1.2.840.113549.1.9.16.2.16"},
	{"signerLocation", "1.2.840.113549.1.9.16.2.17"},
	{"completeCertificateRefs", "1.2.840.113549.1.9.16.2.21"},
	{"completeRevocationRefs", "1.2.840.113549.1.9.16.2.22"},
	{"certValues", "1.2.840.113549.1.9.16.2.23"},
	{"revocationValues", "1.2.840.113549.1.9.16.2.24"},
	{"escTimeStamp", "1.2.840.113549.1.9.16.2.25"},
	{"signingCertificateV2", "1.2.840.113549.1.9.16.2.47"},
	{"spuri", "1.2.840.113549.1.9.16.5.1"},
	{"spunotice", "1.2.840.113549.1.9.16.5.2"},
}

// DN attribute types, keyed by their short name as printed in a
// "/C=US/O=..." string.
var attributes = []entry{
	{"C", "2.5.4.6"},
	{"O", "2.5.4.10"},
	{"OU", "2.5.4.11"},
	{"CN", "2.5.4.3"},
	{"SN", "2.5.4.4"},
	{"SERIALNUMBER", "2.5.4.5"},
	{"L", "2.5.4.7"},
	{"ST", "2.5.4.8"},
	{"STREET", "2.5.4.9"},
	{"T", "2.5.4.12"},
	{"DESCRIPTION", "2.5.4.13"},
	{"businessCategory", "2.5.4.15"},
	{"POSTALCODE", "2.5.4.17"},
	{"name", "2.5.4.41"},
	{"GN", "2.5.4.42"},
	{"initials", "2.5.4.43"},
	{"generationQualifier", "2.5.4.44"},
	{"DNQ", "2.5.4.46"},
	{"pseudonym", "2.5.4.65"},
	{"organizationIdentifier", "2.5.4.97"},
	{"DC", "0.9.2342.19200300.100.1.25"},
	{"UID", "0.9.2342.19200300.100.1.1"},
	{"E", "1.2.840.113549.1.9.1"},
	{"jurisdictionOfIncorporationL", "1.3.6.1.4.1.311.60.2.1.1"},
	{"jurisdictionOfIncorporationSP", "1.3.6.1.4.1.311.60.2.1.2"},
	{"jurisdictionOfIncorporationC", "1.3.6.1.4.1.311.60.2.1.3"},
}

var (
	nameToOID = map[string]string{}
	oidToName = map[string]string{}

	attrShortToOID = map[string]string{}
	attrOIDToShort = map[string]string{}
)

func init() {
	for _, group := range [][]entry{hashes, algorithms, curves, extensions, pkix, cms} {
		for _, e := range group {
			nameToOID[e.name] = e.oid
			oidToName[e.oid] = e.name
		}
	}
	for _, e := range attributes {
		attrShortToOID[strings.ToUpper(e.name)] = e.oid
		attrOIDToShort[e.oid] = e.name
	}
	// Aliases accepted on input only.
	nameToOID["prime256v1"] = nameToOID["secp256r1"]
	nameToOID["P-256"] = nameToOID["secp256r1"]
	nameToOID["P-384"] = nameToOID["secp384r1"]
	nameToOID["P-521"] = nameToOID["secp521r1"]
	nameToOID["id-data"] = nameToOID["data"]
	attrShortToOID["EMAILADDRESS"] = attrShortToOID["E"]
	attrShortToOID["EMAIL"] = attrShortToOID["E"]
	attrShortToOID["S"] = attrShortToOID["ST"]
}

// FromName returns the dotted OID registered for name.
func FromName(name string) (string, bool) {
	o, ok := nameToOID[name]
	return o, ok
}

// Name returns the registered name for a dotted OID.
func Name(oid string) (string, bool) {
	n, ok := oidToName[oid]
	return n, ok
}

// NameOrOID returns the registered name for oid, or oid itself when unknown.
func NameOrOID(oid string) string {
	if n, ok := oidToName[oid]; ok {
		return n
	}
	return oid
}

// Resolve accepts either a registered name or a dotted OID and returns the
// dotted OID.
func Resolve(nameOrOID string) (string, bool) {
	if o, ok := nameToOID[nameOrOID]; ok {
		return o, true
	}
	if IsDotted(nameOrOID) {
		return nameOrOID, true
	}
	return "", false
}

// AttributeShortName returns the DN short name for an attribute type OID.
func AttributeShortName(oid string) (string, bool) {
	n, ok := attrOIDToShort[oid]
	return n, ok
}

// AttributeOID returns the attribute type OID for a DN short name.
// The lookup is case-insensitive.
func AttributeOID(short string) (string, bool) {
	o, ok := attrShortToOID[strings.ToUpper(short)]
	return o, ok
}

// Names returns every registered algorithm, extension and CMS name, sorted.
func Names() []string {
	out := make([]string, 0, len(oidToName))
	for _, n := range oidToName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// IsDotted reports whether s looks like a dotted numeric OID.
func IsDotted(s string) bool {
	if s == "" || s[0] == '.' || s[len(s)-1] == '.' {
		return false
	}
	dots := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.':
			if s[i-1] == '.' {
				return false
			}
			dots++
		case c < '0' || c > '9':
			return false
		}
	}
	return dots >= 1
}
