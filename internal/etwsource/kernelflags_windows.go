//go:build windows && cgo && amd64

package etwsource

import (
	"fmt"
	"unsafe"

	"github.com/Velocidex/etw"
	"golang.org/x/sys/windows"
)

const (
	// traceFlagALPC is EVENT_TRACE_FLAG_ALPC.
	traceFlagALPC uint32 = 0x00100000
	// traceFlagNoSysConfig is EVENT_TRACE_FLAG_NO_SYSCONFIG, which the
	// kernel session is started with.
	traceFlagNoSysConfig uint32 = 0x10000000

	wnodeFlagTracedGUID      = 0x00020000
	eventTraceRealTimeMode   = 0x00000100
	eventTraceControlUpdate  = 2
	qpcClientContext         = 1
	maxLoggerNameLengthUTF16 = 1024
)

var (
	modadvapi32       = windows.NewLazySystemDLL("advapi32.dll")
	procControlTraceW = modadvapi32.NewProc("ControlTraceW")
)

// wnodeHeader mirrors WNODE_HEADER.
type wnodeHeader struct {
	BufferSize        uint32
	ProviderID        uint32
	HistoricalContext uint64
	TimeStamp         int64
	GUID              windows.GUID
	ClientContext     uint32
	Flags             uint32
}

// eventTraceProperties mirrors EVENT_TRACE_PROPERTIES.
type eventTraceProperties struct {
	Wnode               wnodeHeader
	BufferSize          uint32
	MinimumBuffers      uint32
	MaximumBuffers      uint32
	MaximumFileSize     uint32
	LogFileMode         uint32
	FlushTimer          uint32
	EnableFlags         uint32
	AgeLimit            int32
	NumberOfBuffers     uint32
	FreeBuffers         uint32
	EventsLost          uint32
	BuffersWritten      uint32
	LogBuffersLost      uint32
	RealTimeBuffersLost uint32
	LoggerThreadID      windows.Handle
	LogFileNameOffset   uint32
	LoggerNameOffset    uint32
}

// kernelLoggerProperties leaves room after the properties for the
// logger name ControlTraceW writes back.
type kernelLoggerProperties struct {
	eventTraceProperties
	loggerName [maxLoggerNameLengthUTF16]uint16
}

// enableKernelFlags replaces the enable flags of the running kernel
// logger. The etw package only sets the flags its RundownOptions know
// about, and ALPC is not one of them.
func enableKernelFlags(flags uint32) error {
	name, err := windows.UTF16PtrFromString(etw.KernelTraceSessionName)
	if err != nil {
		return err
	}

	var props kernelLoggerProperties
	props.Wnode.BufferSize = uint32(unsafe.Sizeof(props))
	props.Wnode.GUID = etw.KernelTraceControlGUID
	props.Wnode.ClientContext = qpcClientContext
	props.Wnode.Flags = wnodeFlagTracedGUID
	props.LogFileMode = eventTraceRealTimeMode
	props.EnableFlags = flags
	props.LoggerNameOffset = uint32(unsafe.Sizeof(props.eventTraceProperties))

	r1, _, _ := procControlTraceW.Call(
		0,
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(&props)),
		eventTraceControlUpdate,
	)
	if r1 != 0 {
		return fmt.Errorf("ControlTraceW update: %w", windows.Errno(r1))
	}
	return nil
}
