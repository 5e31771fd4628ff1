// Command libperforatorcore builds a cgo c-shared library exposing an
// opaque-handle C ABI, for embedding this module's merge core into
// non-Go drivers. All state lives in package ffi's Registry; this
// file only translates between C types and Go calls.
package main

/*
#include <stdint.h>
#include <stdlib.h>

typedef uint64_t perforator_handle_t;
*/
import "C"

import (
	"bytes"
	"unsafe"

	ppprof "github.com/google/pprof/profile"

	"github.com/aadil-01/perforator/canonicalpb"
	"github.com/aadil-01/perforator/ffi"
	"github.com/aadil-01/perforator/pprofconv"
)

func main() {} // required by -buildmode=c-shared, never called

//export make_merge_manager
func make_merge_manager(threadCount C.uint32_t) C.perforator_handle_t {
	h := ffi.Default.MakeMergeManager(uint32(threadCount))
	return C.perforator_handle_t(h)
}

//export destroy_merge_manager
func destroy_merge_manager(manager C.perforator_handle_t) {
	ffi.Default.DestroyMergeManager(ffi.Handle(manager))
}

//export merger_start
func merger_start(manager C.perforator_handle_t, optionsBytes *C.char, optionsLen C.int, outSession *C.perforator_handle_t) C.perforator_handle_t {
	opts, err := canonicalpb.UnmarshalMergeOptions(C.GoBytes(unsafe.Pointer(optionsBytes), optionsLen))
	if err != nil {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(err))
	}
	session, errHandle := ffi.Default.MergerStart(ffi.Handle(manager), opts)
	if errHandle != 0 {
		return C.perforator_handle_t(errHandle)
	}
	*outSession = C.perforator_handle_t(session)
	return 0
}

//export merger_add_profile
func merger_add_profile(session C.perforator_handle_t, profileHandle C.perforator_handle_t) C.perforator_handle_t {
	return C.perforator_handle_t(ffi.Default.MergerAddProfile(ffi.Handle(session), ffi.Handle(profileHandle)))
}

//export merger_finish
func merger_finish(session C.perforator_handle_t, outProfile *C.perforator_handle_t) C.perforator_handle_t {
	result, errHandle := ffi.Default.MergerFinish(ffi.Handle(session))
	if errHandle != 0 {
		return C.perforator_handle_t(errHandle)
	}
	*outProfile = C.perforator_handle_t(result)
	return 0
}

//export merger_dispose
func merger_dispose(session C.perforator_handle_t) {
	ffi.Default.MergerDispose(ffi.Handle(session))
}

//export profile_parse
func profile_parse(data *C.char, length C.int, out *C.perforator_handle_t) C.perforator_handle_t {
	b := C.GoBytes(unsafe.Pointer(data), length)
	p, err := canonicalpb.Unmarshal(b)
	if err != nil {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(err))
	}
	*out = C.perforator_handle_t(ffi.Default.PutProfile(p))
	return 0
}

//export profile_parse_pprof
func profile_parse_pprof(data *C.char, length C.int, out *C.perforator_handle_t) C.perforator_handle_t {
	b := C.GoBytes(unsafe.Pointer(data), length)
	pp, err := ppprof.ParseData(b)
	if err != nil {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(err))
	}
	p, err := pprofconv.ConvertFromPProf(pp)
	if err != nil {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(err))
	}
	*out = C.perforator_handle_t(ffi.Default.PutProfile(p))
	return 0
}

//export profile_serialize
func profile_serialize(handle C.perforator_handle_t, outString **C.char, outLen *C.int) C.perforator_handle_t {
	p, ok := ffi.Default.ProfileHandle(ffi.Handle(handle))
	if !ok {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(ffi.ErrUnknownProfileHandle(ffi.Handle(handle))))
	}
	data, err := canonicalpb.Marshal(p)
	if err != nil {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(err))
	}
	*outString = C.CString(string(data))
	*outLen = C.int(len(data))
	return 0
}

//export profile_serialize_pprof
func profile_serialize_pprof(handle C.perforator_handle_t, outString **C.char, outLen *C.int) C.perforator_handle_t {
	p, ok := ffi.Default.ProfileHandle(ffi.Handle(handle))
	if !ok {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(ffi.ErrUnknownProfileHandle(ffi.Handle(handle))))
	}
	pp, err := pprofconv.ConvertToPProf(p)
	if err != nil {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(err))
	}
	data, err := marshalPProf(pp)
	if err != nil {
		return C.perforator_handle_t(ffi.Default.ErrorHandleFor(err))
	}
	*outString = C.CString(string(data))
	*outLen = C.int(len(data))
	return 0
}

//export profile_dispose
func profile_dispose(handle C.perforator_handle_t) {
	ffi.Default.ProfileDispose(ffi.Handle(handle))
}

//export error_string
func error_string(handle C.perforator_handle_t) *C.char {
	return C.CString(ffi.Default.ErrorString(ffi.Handle(handle)))
}

//export error_dispose
func error_dispose(handle C.perforator_handle_t) {
	ffi.Default.ErrorDispose(ffi.Handle(handle))
}

func marshalPProf(pp *ppprof.Profile) ([]byte, error) {
	var buf bytes.Buffer
	if err := pp.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
