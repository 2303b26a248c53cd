package util

func StringPointer(s string) *string {
	return &s
}
