package delivery

// SplitContent は整形済み本文を分割ポリシーに従って複数パートに分割する。
// 各パートはlimit文字（rune単位）以下になり、パート数は⌈len/limit⌉になる。
// limitが0以下、または本文がlimit以下の場合は本文1件のみを返す。
func SplitContent(content string, limit int) []string {
	if limit <= 0 {
		return []string{content}
	}
	runes := []rune(content)
	if len(runes) <= limit {
		return []string{content}
	}

	parts := make([]string, 0, (len(runes)+limit-1)/limit)
	for start := 0; start < len(runes); start += limit {
		end := start + limit
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
