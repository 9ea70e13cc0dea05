package system

import (
	"github.com/drblury/socketbus/internal/runtime/ddf"
)

// RebootArgs is the number of argument slots a Reboot message carries.
const RebootArgs = 6

var (
	ExitDescriptor = ddf.NewDescriptor("system.Exit",
		ddf.Field{Name: "code", Kind: ddf.Int32},
	)

	RebootDescriptor = ddf.NewDescriptor("system.Reboot",
		ddf.Field{Name: "arg1", Kind: ddf.String},
		ddf.Field{Name: "arg2", Kind: ddf.String},
		ddf.Field{Name: "arg3", Kind: ddf.String},
		ddf.Field{Name: "arg4", Kind: ddf.String},
		ddf.Field{Name: "arg5", Kind: ddf.String},
		ddf.Field{Name: "arg6", Kind: ddf.String},
	)

	ToggleProfileDescriptor = ddf.NewDescriptor("system.ToggleProfile")

	TogglePhysicsDebugDescriptor = ddf.NewDescriptor("system.TogglePhysicsDebug")

	StartRecordDescriptor = ddf.NewDescriptor("system.StartRecord",
		ddf.Field{Name: "file_name", Kind: ddf.String},
		ddf.Field{Name: "frame_period", Kind: ddf.Int32},
		ddf.Field{Name: "fps", Kind: ddf.Int32},
	)

	StopRecordDescriptor = ddf.NewDescriptor("system.StopRecord")

	SetUpdateFrequencyDescriptor = ddf.NewDescriptor("system.SetUpdateFrequency",
		ddf.Field{Name: "frequency", Kind: ddf.Uint32},
	)

	HideAppDescriptor = ddf.NewDescriptor("system.HideApp")

	SetVsyncDescriptor = ddf.NewDescriptor("system.SetVsync",
		ddf.Field{Name: "swap_interval", Kind: ddf.Uint32},
	)

	RunScriptDescriptor = ddf.NewDescriptor("system.RunScript",
		ddf.Field{Name: "module", Kind: ddf.String},
		ddf.Field{Name: "source", Kind: ddf.String},
	)
)

// Descriptors lists every system schema in dispatch order.
func Descriptors() []*ddf.Descriptor {
	return []*ddf.Descriptor{
		ExitDescriptor,
		RebootDescriptor,
		ToggleProfileDescriptor,
		TogglePhysicsDebugDescriptor,
		StartRecordDescriptor,
		StopRecordDescriptor,
		SetUpdateFrequencyDescriptor,
		HideAppDescriptor,
		SetVsyncDescriptor,
		RunScriptDescriptor,
	}
}

type Exit struct {
	Code int32
}

func (*Exit) DDFDescriptor() *ddf.Descriptor { return ExitDescriptor }
func (m *Exit) EncodeDDF(w *ddf.Writer)      { w.PutInt32("code", m.Code) }
func (m *Exit) DecodeDDF(v *ddf.View)        { m.Code = v.Int32("code") }

// Reboot restarts the engine with up to RebootArgs arguments. Empty slots
// are ignored.
type Reboot struct {
	Args [RebootArgs]string
}

func (*Reboot) DDFDescriptor() *ddf.Descriptor { return RebootDescriptor }

func (m *Reboot) EncodeDDF(w *ddf.Writer) {
	for i, arg := range m.Args {
		w.PutString(rebootField(i), arg)
	}
}

func (m *Reboot) DecodeDDF(v *ddf.View) {
	for i := range m.Args {
		m.Args[i] = v.String(rebootField(i))
	}
}

// Arguments returns the non-empty arguments in order.
func (m *Reboot) Arguments() []string {
	var args []string
	for _, arg := range m.Args {
		if arg != "" {
			args = append(args, arg)
		}
	}
	return args
}

func rebootField(i int) string {
	return RebootDescriptor.Fields[i].Name
}

type ToggleProfile struct{}

func (*ToggleProfile) DDFDescriptor() *ddf.Descriptor { return ToggleProfileDescriptor }
func (*ToggleProfile) EncodeDDF(*ddf.Writer)          {}
func (*ToggleProfile) DecodeDDF(*ddf.View)            {}

type TogglePhysicsDebug struct{}

func (*TogglePhysicsDebug) DDFDescriptor() *ddf.Descriptor { return TogglePhysicsDebugDescriptor }
func (*TogglePhysicsDebug) EncodeDDF(*ddf.Writer)          {}
func (*TogglePhysicsDebug) DecodeDDF(*ddf.View)            {}

type StartRecord struct {
	FileName    string
	FramePeriod int32
	FPS         int32
}

func (*StartRecord) DDFDescriptor() *ddf.Descriptor { return StartRecordDescriptor }

func (m *StartRecord) EncodeDDF(w *ddf.Writer) {
	w.PutString("file_name", m.FileName).
		PutInt32("frame_period", m.FramePeriod).
		PutInt32("fps", m.FPS)
}

func (m *StartRecord) DecodeDDF(v *ddf.View) {
	m.FileName = v.String("file_name")
	m.FramePeriod = v.Int32("frame_period")
	m.FPS = v.Int32("fps")
}

type StopRecord struct{}

func (*StopRecord) DDFDescriptor() *ddf.Descriptor { return StopRecordDescriptor }
func (*StopRecord) EncodeDDF(*ddf.Writer)          {}
func (*StopRecord) DecodeDDF(*ddf.View)            {}

type SetUpdateFrequency struct {
	Frequency uint32
}

func (*SetUpdateFrequency) DDFDescriptor() *ddf.Descriptor { return SetUpdateFrequencyDescriptor }
func (m *SetUpdateFrequency) EncodeDDF(w *ddf.Writer)      { w.PutUint32("frequency", m.Frequency) }
func (m *SetUpdateFrequency) DecodeDDF(v *ddf.View)        { m.Frequency = v.Uint32("frequency") }

type HideApp struct{}

func (*HideApp) DDFDescriptor() *ddf.Descriptor { return HideAppDescriptor }
func (*HideApp) EncodeDDF(*ddf.Writer)          {}
func (*HideApp) DecodeDDF(*ddf.View)            {}

type SetVsync struct {
	SwapInterval uint32
}

func (*SetVsync) DDFDescriptor() *ddf.Descriptor { return SetVsyncDescriptor }
func (m *SetVsync) EncodeDDF(w *ddf.Writer)      { w.PutUint32("swap_interval", m.SwapInterval) }
func (m *SetVsync) DecodeDDF(v *ddf.View)        { m.SwapInterval = v.Uint32("swap_interval") }

// RunScript loads Source as the script module named Module.
type RunScript struct {
	Module string
	Source string
}

func (*RunScript) DDFDescriptor() *ddf.Descriptor { return RunScriptDescriptor }

func (m *RunScript) EncodeDDF(w *ddf.Writer) {
	w.PutString("module", m.Module).PutString("source", m.Source)
}

func (m *RunScript) DecodeDDF(v *ddf.View) {
	m.Module = v.String("module")
	m.Source = v.String("source")
}
