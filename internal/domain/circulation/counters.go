package circulation

import (
	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
)

// Counters 由副本状态重算出的图书计数
type Counters struct {
	Total     int                     // copie_totali
	Available int                     // copie_disponibili
	Lendable  int                     // 可流通副本（不含遗失/损坏/维护）
	ByStatus  map[bookcopy.Status]int // 各状态副本数
}

// ComputeCounters 纯函数：从副本状态全量重算，不做增量加减
func ComputeCounters(statuses []bookcopy.Status) Counters {
	c := Counters{
		Total:    len(statuses),
		ByStatus: make(map[bookcopy.Status]int, len(bookcopy.AllStatuses)),
	}
	for _, s := range statuses {
		c.ByStatus[s]++
		if s == bookcopy.StatusAvailable {
			c.Available++
		}
		if s.IsLendable() {
			c.Lendable++
		}
	}
	return c
}

// BookStatus 派生图书标签
func (c Counters) BookStatus() book.Status {
	return book.DeriveStatus(c.Available, c.Lendable)
}
