//go:build windows

package probe

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	shell32  = windows.NewLazySystemDLL("shell32.dll")
	gdi32    = windows.NewLazySystemDLL("gdi32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procGetGUIThreadInfo         = user32.NewProc("GetGUIThreadInfo")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procSendMessageTimeoutW      = user32.NewProc("SendMessageTimeoutW")
	procGetClassLongPtrW         = user32.NewProc("GetClassLongPtrW")
	procGetClassLongW            = user32.NewProc("GetClassLongW")
	procGetIconInfo              = user32.NewProc("GetIconInfo")
	procDestroyIcon              = user32.NewProc("DestroyIcon")
	procGetDC                    = user32.NewProc("GetDC")
	procReleaseDC                = user32.NewProc("ReleaseDC")
	procExtractIconW             = shell32.NewProc("ExtractIconW")
	procGetObjectW               = gdi32.NewProc("GetObjectW")
	procGetDIBits                = gdi32.NewProc("GetDIBits")
	procDeleteObject             = gdi32.NewProc("DeleteObject")
	procGetModuleHandleW         = kernel32.NewProc("GetModuleHandleW")
)

const (
	wmGetIcon       = 0x7F
	iconSmall       = 0
	iconBig         = 1
	iconSmall2      = 2
	gclpHIcon       = -14
	gclpHIconSm     = -34
	smtoAbortIfHung = 0x0002
	sendTimeoutMs   = 100
	biRGB           = 0
	dibRGBColors    = 0
	is64Bit         = unsafe.Sizeof(uintptr(0)) == 8
)

type guiThreadInfo struct {
	Size      uint32
	Flags     uint32
	Active    uintptr
	Focus     uintptr
	Capture   uintptr
	MenuOwner uintptr
	MoveSize  uintptr
	Caret     uintptr
	CaretRect [4]int32
}

type iconInfo struct {
	FIcon    int32
	XHotspot uint32
	YHotspot uint32
	HbmMask  uintptr
	HbmColor uintptr
}

type bitmap struct {
	Type       int32
	Width      int32
	Height     int32
	WidthBytes int32
	Planes     uint16
	BitsPixel  uint16
	Bits       uintptr
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	Colors [1]uint32
}

type win32Prober struct{}

func newPlatformProber() (Prober, error) {
	if err := procGetGUIThreadInfo.Find(); err != nil {
		return nil, err
	}
	return &win32Prober{}, nil
}

func (p *win32Prober) Sample(ctx context.Context) (Sample, error) {
	hwnd := foregroundWindow()
	if hwnd == 0 {
		return Sample{}, &Error{Op: "foreground window", Err: errors.New("no window has focus")}
	}
	title := windowText(hwnd)

	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if pid == 0 {
		return Sample{}, &Error{Op: "window pid", Err: errors.New("no owning process")}
	}
	name, exe, err := processInfo(int32(pid))
	if err != nil {
		return Sample{}, err
	}

	return Sample{
		Title:   NormalizeTitle(title),
		Program: name,
		PID:     int32(pid),
		Icon:    resolveIcon(hwnd, exe),
	}, nil
}

func foregroundWindow() uintptr {
	info := guiThreadInfo{}
	info.Size = uint32(unsafe.Sizeof(info))
	if r, _, _ := procGetGUIThreadInfo.Call(0, uintptr(unsafe.Pointer(&info))); r != 0 && info.Active != 0 {
		return info.Active
	}
	hwnd, _, _ := procGetForegroundWindow.Call()
	return hwnd
}

func windowText(hwnd uintptr) string {
	buf := make([]uint16, MaxTitleLength+1)
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:n])
}

// resolveIcon tries the executable's icon, then the icons the window reports,
// then the icons registered with its class.
func resolveIcon(hwnd uintptr, exe string) []byte {
	if exe != "" {
		if data := executableIcon(exe); data != nil {
			return data
		}
	}
	for _, kind := range []uintptr{iconSmall, iconBig, iconSmall2} {
		var hicon uintptr
		r, _, _ := procSendMessageTimeoutW.Call(hwnd, wmGetIcon, kind, 0, smtoAbortIfHung, sendTimeoutMs, uintptr(unsafe.Pointer(&hicon)))
		if r != 0 && hicon != 0 {
			if data, err := iconToPNG(hicon); err == nil {
				return data
			}
		}
	}
	for _, index := range []int{gclpHIconSm, gclpHIcon} {
		if hicon := classLongPtr(hwnd, index); hicon != 0 {
			if data, err := iconToPNG(hicon); err == nil {
				return data
			}
		}
	}
	return nil
}

func executableIcon(exe string) []byte {
	path, err := windows.UTF16PtrFromString(exe)
	if err != nil {
		return nil
	}
	instance, _, _ := procGetModuleHandleW.Call(0)
	hicon, _, _ := procExtractIconW.Call(instance, uintptr(unsafe.Pointer(path)), 0)
	// 1 means the file is not an executable, icon or library
	if hicon <= 1 {
		return nil
	}
	defer procDestroyIcon.Call(hicon)
	data, err := iconToPNG(hicon)
	if err != nil {
		return nil
	}
	return data
}

func classLongPtr(hwnd uintptr, index int) uintptr {
	if is64Bit {
		r, _, _ := procGetClassLongPtrW.Call(hwnd, uintptr(index))
		return r
	}
	r, _, _ := procGetClassLongW.Call(hwnd, uintptr(index))
	return r
}

func iconToPNG(hicon uintptr) ([]byte, error) {
	var ii iconInfo
	if r, _, err := procGetIconInfo.Call(hicon, uintptr(unsafe.Pointer(&ii))); r == 0 {
		return nil, err
	}
	if ii.HbmMask != 0 {
		defer procDeleteObject.Call(ii.HbmMask)
	}
	if ii.HbmColor == 0 {
		return nil, errors.New("monochrome icon")
	}
	defer procDeleteObject.Call(ii.HbmColor)

	var bm bitmap
	if r, _, err := procGetObjectW.Call(ii.HbmColor, unsafe.Sizeof(bm), uintptr(unsafe.Pointer(&bm))); r == 0 {
		return nil, err
	}
	w, h := int(bm.Width), int(bm.Height)
	if w <= 0 || h <= 0 {
		return nil, errors.New("empty icon bitmap")
	}

	hdc, _, _ := procGetDC.Call(0)
	if hdc == 0 {
		return nil, errors.New("GetDC failed")
	}
	defer procReleaseDC.Call(0, hdc)

	bi := bitmapInfo{}
	bi.Header = bitmapInfoHeader{
		Size:        uint32(unsafe.Sizeof(bi.Header)),
		Width:       int32(w),
		Height:      -int32(h), // top-down rows
		Planes:      1,
		BitCount:    32,
		Compression: biRGB,
	}
	buf := make([]byte, w*h*4)
	if r, _, err := procGetDIBits.Call(hdc, ii.HbmColor, 0, uintptr(h), uintptr(unsafe.Pointer(&buf[0])), uintptr(unsafe.Pointer(&bi)), dibRGBColors); r == 0 {
		return nil, err
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	hasAlpha := false
	for i := 0; i < len(buf); i += 4 {
		img.Pix[i] = buf[i+2]
		img.Pix[i+1] = buf[i+1]
		img.Pix[i+2] = buf[i]
		img.Pix[i+3] = buf[i+3]
		if buf[i+3] != 0 {
			hasAlpha = true
		}
	}
	if !hasAlpha {
		for i := 3; i < len(img.Pix); i += 4 {
			img.Pix[i] = 0xFF
		}
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
