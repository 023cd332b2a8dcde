package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// digest.go - детерминированные дайджесты параметров
//
// Сделки некоторых бирж не имеют стабильного идентификатора, поэтому
// дедупликация при повторных синхронизациях опирается на дайджест
// содержимого записи.

// ParamsDigest строит SHA-256 дайджест набора параметров.
//
// Параметры сортируются по ключу, поэтому дайджест не зависит от
// порядка обхода map. Формат конкатенации: "k1=v1&k2=v2&...".
func ParamsDigest(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
