// Package unspsc implements matching of UNSPSC product/service classification
// codes as declared by subscribers against the codes carried by tenders.
//
// An 8-digit code identifies a specific item; its leading 4 digits identify
// the broad "family". A declared code ending in "0000" is a family code and
// matches any tender code sharing its 4-digit prefix. SECOP prefixes codes
// with "V1." in some datasets, so the prefix is stripped from both sides
// before comparison.
package unspsc

import "strings"

// VendorPrefix is the dataset-specific prefix that may precede a code.
const VendorPrefix = "V1."

const familySuffix = "0000"

// Normalize strips the optional vendor prefix and surrounding whitespace.
func Normalize(code string) string {
	return strings.TrimPrefix(strings.TrimSpace(code), VendorPrefix)
}

// IsFamily reports whether a declared code is a family-level code, i.e. it
// addresses the whole 4-digit family rather than a specific item.
func IsFamily(code string) bool {
	bare := Normalize(code)
	return len(bare) > len(familySuffix) && strings.HasSuffix(bare, familySuffix)
}

// Family returns the 4-character family prefix of a code. Codes shorter than
// 4 characters are returned as-is; malformed codes are treated as literal
// strings throughout, never rejected.
func Family(code string) string {
	bare := Normalize(code)
	if len(bare) <= 4 {
		return bare
	}
	return bare[:4]
}

// matchesOne reports whether a single declared code matches a single tender
// code under exact or family semantics.
func matchesOne(tenderCode, declared string) bool {
	bareTender := Normalize(tenderCode)
	bareDeclared := Normalize(declared)

	if IsFamily(declared) {
		return Family(bareTender) == Family(bareDeclared)
	}
	return bareTender == bareDeclared
}

// Matches reports whether any of the tender's codes satisfies any of the
// declared codes. Both sides may carry the vendor prefix. Empty declared or
// tender sets never match.
func Matches(tenderCodes, declaredCodes []string) bool {
	for _, declared := range declaredCodes {
		if strings.TrimSpace(declared) == "" {
			continue
		}
		for _, tc := range tenderCodes {
			if strings.TrimSpace(tc) == "" {
				continue
			}
			if matchesOne(tc, declared) {
				return true
			}
		}
	}
	return false
}

// Expand returns the set of literal values a specific code may appear as
// upstream: the bare code and its vendor-prefixed form. Used when pushing
// exact-match filters into remote or storage queries.
func Expand(code string) []string {
	bare := Normalize(code)
	return []string{bare, VendorPrefix + bare}
}

// Partition splits declared codes into specific codes and family codes,
// dropping blanks and preserving order.
func Partition(codes []string) (specifics, families []string) {
	for _, c := range codes {
		if strings.TrimSpace(c) == "" {
			continue
		}
		if IsFamily(c) {
			families = append(families, c)
		} else {
			specifics = append(specifics, c)
		}
	}
	return specifics, families
}
