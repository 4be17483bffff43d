package crash

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"time"

	"leviathan/internal/logger"
)

// PanicError wraps a recovered panic value together with its stack.
type PanicError struct {
	Module string
	Value  interface{}
	Stack  []byte
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", p.Module, p.Value)
}

// RecoverWithStack 记录 panic 和堆栈，然后让调用方继续运行
func RecoverWithStack(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, debug.Stack(), false)
	}
}

// RecoverToError turns a panic into *PanicError stored in errp. Use it as
// `defer crash.RecoverToError("name", &err)` where a failing unit of work must
// be retired instead of taking the loop down.
func RecoverToError(moduleName string, errp *error) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		report(moduleName, r, stack, false)
		if errp != nil {
			*errp = &PanicError{Module: moduleName, Value: r, Stack: stack}
		}
	}
}

// RecoverWithStackAndExit 用于主程序的 panic 恢复，会记录信息后退出
func RecoverWithStackAndExit(moduleName string) {
	if r := recover(); r != nil {
		report(moduleName, r, debug.Stack(), true)

		// 给日志系统一些时间写入文件
		logger.Sync()
		time.Sleep(1 * time.Second)

		os.Exit(1)
	}
}

// SafeGoroutine 启动一个带有 panic 恢复的 goroutine
func SafeGoroutine(name string, fn func()) {
	go func() {
		defer RecoverWithStack(fmt.Sprintf("goroutine-%s", name))
		fn()
	}()
}

func report(moduleName string, r interface{}, stack []byte, fatal bool) {
	prefix := "PANIC"
	if fatal {
		prefix = "FATAL PANIC"
	}

	logger.Errorf("%s in %s: %v", prefix, moduleName, r)
	logger.Errorf("Stack trace:\n%s", string(stack))

	// 同时输出到标准错误，确保在容器日志中能看到
	fmt.Fprintf(os.Stderr, "[%s] %s - %s: %v\n", prefix, time.Now().Format("2006-01-02 15:04:05"), moduleName, r)

	if fatal {
		logRuntimeInfo()
	}
}

// logRuntimeInfo 记录运行时信息，帮助调试
func logRuntimeInfo() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	logger.Errorf("runtime: go=%s cpus=%d goroutines=%d heap_alloc=%dKB heap_inuse=%dKB stack_inuse=%dKB num_gc=%d",
		runtime.Version(),
		runtime.NumCPU(),
		runtime.NumGoroutine(),
		m.HeapAlloc/1024,
		m.HeapInuse/1024,
		m.StackInuse/1024,
		m.NumGC,
	)
}
