// Package dates 借阅日期工具
//
// 借阅、预约的日期全部按自然日处理：统一截断到UTC零点后再比较和存储，
// 这样 [start, end] 闭区间重叠判断与数据库中的 DATE 列语义一致。
package dates

import (
	"fmt"
	"time"
)

// Layout HTTP接口与CLI使用的日期格式
const Layout = "2006-01-02"

// Truncate 截断到UTC零点
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today 返回now所在自然日
func Today(now func() time.Time) time.Time {
	return Truncate(now())
}

// AddDays 在自然日上加减天数
func AddDays(t time.Time, days int) time.Time {
	return Truncate(t).AddDate(0, 0, days)
}

// Parse 解析YYYY-MM-DD
func Parse(s string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式应为%s: %w", Layout, err)
	}
	return t, nil
}

// Format 格式化为YYYY-MM-DD
func Format(t time.Time) string {
	return t.UTC().Format(Layout)
}

// FormatPtr 可空日期格式化，nil返回空串
func FormatPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return Format(*t)
}

// Overlaps 闭区间重叠：a.start <= b.end && a.end >= b.start
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !aEnd.Before(bStart)
}
