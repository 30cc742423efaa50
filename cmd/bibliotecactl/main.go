// bibliotecactl 运维命令行：过期预约清理、计数重算、队列处理、馆员授权
//
// 用法：
//
//	bibliotecactl sweep
//	bibliotecactl recalc [--book 42]
//	bibliotecactl process-queue 42 [--limit 5]
//	bibliotecactl promote mario.rossi@example.it
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
