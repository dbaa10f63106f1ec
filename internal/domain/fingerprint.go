package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Fingerprint is the JIT cache key: a deterministic hash of
// (operator_structure_signature, input_shape_signature, strategy_name,
// option_flags), per spec.md §3. It never incorporates Record content,
// which is what lets deterministic subgraphs memoize safely across
// distinct inputs with the same shape.
type Fingerprint string

// StructureSignature renders a Structure tree into a canonical string
// independent of map iteration order, suitable for hashing.
func StructureSignature(s Structure) string {
	var b strings.Builder
	writeStructure(&b, s)
	return b.String()
}

func writeStructure(b *strings.Builder, s Structure) {
	b.WriteString(s.Kind.String())
	b.WriteByte('(')
	b.WriteString(s.ID)
	if s.Stochastic {
		b.WriteString("!stochastic")
	}
	b.WriteByte(')')
	if len(s.Children) > 0 {
		b.WriteByte('[')
		for i, c := range s.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			writeStructure(b, c)
		}
		b.WriteByte(']')
	}
}

// ComputeFingerprint hashes the operator's structural signature, the
// input Record's shape signature, the JIT strategy name, and any option
// flags into one Fingerprint.
func ComputeFingerprint(structureSig, shapeSig, strategyName string, flags map[string]string) Fingerprint {
	h := sha256.New()
	fmt.Fprintf(h, "struct:%s|shape:%s|strategy:%s|flags:", structureSig, shapeSig, strategyName)

	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s,", k, flags[k])
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}
