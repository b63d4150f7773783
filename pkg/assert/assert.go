package assert

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// NotNil 断言对象非空，失败直接 panic（仅用于启动装配阶段）
func NotNil(v interface{}) {
	if v == nil {
		panic("assert: unexpected nil value")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			panic(fmt.Sprintf("assert: unexpected nil %T", v))
		}
	}
}

// NotCircular 检测单例构造函数是否在自己的 sync.Once 中被重入
func NotCircular() {
	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return
	}
	name := fn.Name()

	stack := make([]uintptr, 64)
	n := runtime.Callers(3, stack)
	frames := runtime.CallersFrames(stack[:n])
	for {
		frame, more := frames.Next()
		if frame.Function == name {
			panic("assert: circular singleton initialization in " + shortName(name))
		}
		if !more {
			break
		}
	}
}

func shortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}
