//go:build windows

package library

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

const launcherProgID = "LogosBibleSoftware.Launcher"

// sFalse is returned by CoInitializeEx when the apartment already exists.
const sFalse = 0x00000001

// DefaultLauncher creates the COM launcher object. The calling goroutine is
// locked to its OS thread until the launcher is closed.
func DefaultLauncher() (Launcher, error) {
	runtime.LockOSThread()
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != sFalse {
			runtime.UnlockOSThread()
			return nil, fmt.Errorf("initialize COM: %w", err)
		}
	}

	unknown, err := oleutil.CreateObject(launcherProgID)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("create %s: %w", launcherProgID, err)
	}
	defer unknown.Release()

	disp, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		ole.CoUninitialize()
		runtime.UnlockOSThread()
		return nil, fmt.Errorf("query IDispatch: %w", err)
	}
	return &comLauncher{launcher: disp}, nil
}

type comLauncher struct {
	launcher *ole.IDispatch
}

func (l *comLauncher) LaunchApplication() error {
	v, err := oleutil.CallMethod(l.launcher, "LaunchApplication")
	if err != nil {
		return err
	}
	_ = v.Clear()
	return nil
}

func (l *comLauncher) Application() (Application, error) {
	v, err := oleutil.GetProperty(l.launcher, "Application")
	if err != nil {
		return nil, err
	}
	disp := v.ToIDispatch()
	if v.VT == ole.VT_NULL || v.VT == ole.VT_EMPTY || disp == nil {
		_ = v.Clear()
		return nil, nil
	}
	// The variant's reference now belongs to comApplication.
	return &comApplication{app: disp}, nil
}

func (l *comLauncher) Close() error {
	l.launcher.Release()
	ole.CoUninitialize()
	runtime.UnlockOSThread()
	return nil
}

type comApplication struct {
	app *ole.IDispatch
}

func (a *comApplication) GetResourcesMatchingQuery(query string) ([]SearchResult, error) {
	lib, err := oleutil.GetProperty(a.app, "Library")
	if err != nil {
		return nil, fmt.Errorf("get Library: %w", err)
	}
	defer lib.Clear()

	found, err := oleutil.CallMethod(lib.ToIDispatch(), "GetResourcesMatchingQuery", query)
	if err != nil {
		return nil, err
	}
	defer found.Clear()

	var results []SearchResult
	err = oleutil.ForEach(found.ToIDispatch(), func(v *ole.VARIANT) error {
		item := v.ToIDispatch()
		if item == nil {
			return nil
		}
		results = append(results, SearchResult{
			Title:            stringProperty(item, "Title"),
			ResourceID:       stringProperty(item, "ResourceId"),
			Version:          stringProperty(item, "Version"),
			ResourceType:     stringProperty(item, "ResourceType"),
			AbbreviatedTitle: stringProperty(item, "AbbreviatedTitle"),
		})
		return nil
	})
	return results, err
}

type comReference struct {
	ref *ole.IDispatch
}

func (r comReference) Close() error {
	r.ref.Release()
	return nil
}

func (r comReference) String() string {
	v, err := oleutil.CallMethod(r.ref, "Render", "en")
	if err != nil {
		return "<reference>"
	}
	defer v.Clear()
	return v.ToString()
}

func (a *comApplication) ScanForReferences(text string) ([]Reference, error) {
	dataTypes, err := oleutil.GetProperty(a.app, "DataTypes")
	if err != nil {
		return nil, fmt.Errorf("get DataTypes: %w", err)
	}
	defer dataTypes.Clear()

	bible, err := oleutil.CallMethod(dataTypes.ToIDispatch(), "GetDataType", "Bible")
	if err != nil {
		return nil, fmt.Errorf("get Bible data type: %w", err)
	}
	defer bible.Clear()

	scanned, err := oleutil.CallMethod(bible.ToIDispatch(), "ScanForReferences", text)
	if err != nil {
		return nil, err
	}
	defer scanned.Clear()

	var refs []Reference
	err = oleutil.ForEach(scanned.ToIDispatch(), func(v *ole.VARIANT) error {
		detail := v.ToIDispatch()
		if detail == nil {
			return nil
		}
		ref, err := oleutil.GetProperty(detail, "Reference")
		if err != nil {
			return err
		}
		disp := ref.ToIDispatch()
		if disp == nil {
			_ = ref.Clear()
			return nil
		}
		refs = append(refs, comReference{ref: disp})
		return nil
	})
	if err != nil {
		releaseReferences(refs)
		return nil, err
	}
	return refs, nil
}

func (a *comApplication) CopyVerses(ref Reference) (string, error) {
	cr, ok := ref.(comReference)
	if !ok {
		return "", fmt.Errorf("reference %s was not produced by this application", ref)
	}

	copier, err := oleutil.GetProperty(a.app, "CopyBibleVerses")
	if err != nil {
		return "", fmt.Errorf("get CopyBibleVerses: %w", err)
	}
	defer copier.Clear()

	request, err := oleutil.CallMethod(copier.ToIDispatch(), "CreateRequest")
	if err != nil {
		return "", fmt.Errorf("create copy request: %w", err)
	}
	defer request.Clear()

	if _, err := oleutil.PutProperty(request.ToIDispatch(), "Reference", cr.ref); err != nil {
		return "", fmt.Errorf("set reference: %w", err)
	}

	text, err := oleutil.CallMethod(copier.ToIDispatch(), "GetText", request.ToIDispatch())
	if err != nil {
		return "", err
	}
	defer text.Clear()
	return text.ToString(), nil
}

func (a *comApplication) Close() error {
	a.app.Release()
	return nil
}

func stringProperty(d *ole.IDispatch, name string) string {
	v, err := oleutil.GetProperty(d, name)
	if err != nil {
		return ""
	}
	defer v.Clear()
	if v.VT == ole.VT_NULL || v.VT == ole.VT_EMPTY {
		return ""
	}
	return v.ToString()
}
