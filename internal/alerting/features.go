package alerting

import (
	"context"
	"time"

	"SafeCircle/internal/models"
	"SafeCircle/internal/session"
	"SafeCircle/internal/trigger"
	"SafeCircle/pkg/errors"
	"SafeCircle/pkg/scheduler"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// uploadDelay 模拟录制上传耗时
const uploadDelay = 2 * time.Second

// Tick 定时器评估：行程超时、错过报平安。每个截止时间只触发一次
func (e *Engine) Tick(context.Context) {
	trigger.EvaluateAll(e.clock(), e.Emit, &e.journey, e.checkIn)
}

func (e *Engine) tickShare(context.Context) {
	if e.share.Expire(e.clock()) {
		e.persist(session.KeyShareTimer, e.share.State())
		e.notify(models.LevelInfo, "NotifyShareEnded", nil)
	}
}

func (e *Engine) remindCheckIn(context.Context) {
	s := e.checkIn.State()
	if !s.Enabled || s.Fired {
		return
	}
	e.notify(models.LevelInfo, "NotifyCheckInReminder", map[string]interface{}{"Time": s.Time})
}

// JourneyStart 开始行程的结果；ShareMessage 可由界面分享给联系人
type JourneyStart struct {
	Journey      models.JourneyTracking `json:"journey"`
	ShareMessage string                 `json:"shareMessage,omitempty"`
}

// StartJourney minutes<=0 时默认 30 分钟，目的地必填
func (e *Engine) StartJourney(ctx context.Context, destination string, minutes int) (JourneyStart, error) {
	now := e.clock()
	j, err := e.journey.Start(destination, time.Duration(minutes)*time.Minute, now)
	if err != nil {
		e.notify(models.LevelWarning, "NotifyDestinationRequired", nil)
		return JourneyStart{}, err
	}
	e.persist(session.KeyJourneyTracking, j)
	out := JourneyStart{Journey: j}

	if fix, ok := e.LastFix(); ok {
		p, _ := e.profiles.Profile(ctx)
		payload := models.AlertPayload{SenderName: p.DisplayName(), LocationText: fix.MapsURL(), Kind: models.KindShare, Detail: j.Destination}
		eta := e.formatter.FormatTime(time.UnixMilli(j.Deadline()))
		out.ShareMessage = e.formatter.Render(MsgShareJourney, payload, map[string]interface{}{"Time": eta})
		e.logger.Debug("journey shared", zap.String("message", out.ShareMessage))
	}
	e.notify(models.LevelInfo, "NotifyJourneyStarted", map[string]interface{}{"Detail": j.Destination})
	return out, nil
}

func (e *Engine) EndJourney() models.JourneyTracking {
	j := e.journey.End()
	e.persist(session.KeyJourneyTracking, j)
	e.notify(models.LevelInfo, "NotifyJourneyCompleted", nil)
	return j
}

func (e *Engine) Journey() models.JourneyTracking { return e.journey.State() }

// ScheduleCheckIn hours<=0 时默认 2 小时
func (e *Engine) ScheduleCheckIn(ctx context.Context, hours int) models.CheckInSchedule {
	if hours <= 0 {
		hours = int(trigger.DefaultCheckInInterval / time.Hour)
	}
	p, _ := e.profiles.Profile(ctx)
	names := make([]string, 0, len(p.EmergencyContacts))
	for _, c := range p.EmergencyContacts {
		names = append(names, c.Name)
	}
	s := e.checkIn.Schedule(time.Duration(hours)*time.Hour, e.clock(), names)
	e.persist(session.KeyCheckInSchedule, s)
	e.notify(models.LevelInfo, "NotifyCheckInScheduled", map[string]interface{}{"Hours": hours})
	return s
}

// PerformCheckIn 报平安并顺延下一次截止时间
func (e *Engine) PerformCheckIn() models.CheckInSchedule {
	s := e.checkIn.CheckIn(e.clock())
	e.persist(session.KeyCheckInSchedule, s)
	e.notify(models.LevelInfo, "NotifyCheckInRecorded", nil)
	return s
}

func (e *Engine) CancelCheckIn() models.CheckInSchedule {
	s := e.checkIn.Cancel()
	e.persist(session.KeyCheckInSchedule, s)
	return s
}

func (e *Engine) CheckIn() models.CheckInSchedule { return e.checkIn.State() }

// StartShareTimer 限时共享位置，到期只提示
func (e *Engine) StartShareTimer(minutes int) (models.ShareTimer, error) {
	st, err := e.share.Start(time.Duration(minutes)*time.Minute, e.clock())
	if err != nil {
		return models.ShareTimer{}, err
	}
	e.persist(session.KeyShareTimer, st)
	e.notify(models.LevelInfo, "NotifyShareStarted", map[string]interface{}{"Minutes": minutes})
	return st, nil
}

func (e *Engine) StopShareTimer() models.ShareTimer {
	st := e.share.Stop()
	e.persist(session.KeyShareTimer, st)
	e.notify(models.LevelInfo, "NotifyShareEnded", nil)
	return st
}

func (e *Engine) ShareTimer() models.ShareTimer { return e.share.State() }

// ShareLocation 把当前位置发给所有联系人，不经过 Gate
func (e *Engine) ShareLocation(ctx context.Context) (models.AlertPayload, *Delivery, error) {
	payload, d, err := e.shareOnce(ctx, MsgShareLocation)
	if err == nil {
		e.notify(models.LevelInfo, "NotifyLocationShared", nil)
	}
	return payload, d, err
}

// SetWalkWithMe 虚拟陪同。开启时给联系人发送实时位置
func (e *Engine) SetWalkWithMe(ctx context.Context, on bool) (*Delivery, error) {
	e.mu.Lock()
	was := e.escort
	e.escort = on
	e.mu.Unlock()

	if !on {
		if was {
			e.notify(models.LevelInfo, "NotifyEscortEnded", nil)
		}
		return nil, nil
	}
	_, d, err := e.shareOnce(ctx, MsgShareWalk)
	if err != nil {
		e.mu.Lock()
		e.escort = false
		e.mu.Unlock()
		return nil, err
	}
	e.notify(models.LevelInfo, "NotifyEscortActive", nil)
	return d, nil
}

func (e *Engine) WalkWithMe() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.escort
}

// shareOnce 非紧急的一次性扇出，日志类型为 share
func (e *Engine) shareOnce(ctx context.Context, messageID string) (models.AlertPayload, *Delivery, error) {
	asm, err := e.assembler.Assemble(ctx, Request{Kind: models.KindShare, Source: models.SourceManual})
	if err != nil {
		if errors.Is(err, errors.ErrNoContacts) {
			e.notify(models.LevelWarning, "NotifyNoContacts", nil)
		}
		return models.AlertPayload{}, nil, err
	}
	if asm.LocationErr != nil {
		e.notify(models.LevelWarning, "NotifyLocationUnavailable", nil)
	} else {
		e.rememberFix(*asm.Fix)
	}
	body := e.formatter.Render(messageID, asm.Payload, nil)
	d := e.fanout.Send(ctx, asm.Contacts, string(models.KindShare), func(c models.Contact) string { return e.formatter.ForContact(c, body) })
	return asm.Payload, d, nil
}

// StartRecording 模拟录制，同一时间只有一个
func (e *Engine) StartRecording(kind models.RecordingType) (models.RecordingSession, error) {
	if kind != models.RecordingVideo && kind != models.RecordingAudio {
		return models.RecordingSession{}, errors.ErrInvalidInput.WithContext("type", string(kind))
	}
	e.mu.Lock()
	if e.recording != nil {
		e.mu.Unlock()
		return models.RecordingSession{}, errors.WithCode(errors.CodeConflict, "recording already in progress")
	}
	rec := models.RecordingSession{
		ID:        uuid.NewString(),
		Type:      kind,
		Timestamp: e.clock(),
		Status:    models.RecordingStatusRecording,
	}
	e.recording = &rec
	e.mu.Unlock()

	label := "Video"
	if kind == models.RecordingAudio {
		label = "Audio"
	}
	e.notify(models.LevelInfo, "NotifyRecordingStarted", map[string]interface{}{"Detail": label})
	return rec, nil
}

// StopRecording 状态先为 stopped，uploadDelay 后变为 uploaded
func (e *Engine) StopRecording() (models.RecordingSession, error) {
	e.mu.Lock()
	if e.recording == nil {
		e.mu.Unlock()
		return models.RecordingSession{}, errors.ErrNotFound.WithContext("recording", "active")
	}
	rec := *e.recording
	e.recording = nil
	rec.Duration = (e.clock() - rec.Timestamp) / 1000
	rec.Status = models.RecordingStatusStopped
	e.recordings = append([]models.RecordingSession{rec}, e.recordings...)
	snapshot := append([]models.RecordingSession(nil), e.recordings...)
	e.mu.Unlock()

	e.persist(session.KeyRecordingSessions, snapshot)
	e.sched.AfterFunc(uploadDelay, scheduler.FuncJob(func(context.Context) { e.markUploaded(rec.ID) }))
	return rec, nil
}

func (e *Engine) markUploaded(id string) {
	e.mu.Lock()
	found := false
	for i := range e.recordings {
		if e.recordings[i].ID == id && e.recordings[i].Status == models.RecordingStatusStopped {
			e.recordings[i].Status = models.RecordingStatusUploaded
			found = true
		}
	}
	snapshot := append([]models.RecordingSession(nil), e.recordings...)
	e.mu.Unlock()
	if !found {
		return
	}
	e.persist(session.KeyRecordingSessions, snapshot)
	e.notify(models.LevelInfo, "NotifyRecordingUploaded", nil)
}

// Recordings 最新在前
func (e *Engine) Recordings() []models.RecordingSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.RecordingSession(nil), e.recordings...)
}

func (e *Engine) SetDecoy(info models.DecoyInfo) models.DecoyInfo {
	e.mu.Lock()
	e.decoy = info
	e.mu.Unlock()
	e.persist(session.KeyDecoyInfo, info)
	e.notify(models.LevelInfo, "NotifyDecoySaved", nil)
	return info
}

func (e *Engine) Decoy() models.DecoyInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.decoy
}

// StartFakeCall 假来电只产生提示，来电名取自 decoy 信息
func (e *Engine) StartFakeCall() string {
	caller := e.Decoy().Name
	if caller == "" {
		caller = "Mom"
	}
	e.notify(models.LevelInfo, "NotifyFakeCall", map[string]interface{}{"Detail": caller})
	return caller
}

func (e *Engine) EndFakeCall() {
	e.notify(models.LevelInfo, "NotifyFakeCallEnded", nil)
}

// ToggleSiren 只切换状态并提示
func (e *Engine) ToggleSiren() bool {
	e.mu.Lock()
	e.siren = !e.siren
	on := e.siren
	e.mu.Unlock()
	if on {
		e.notify(models.LevelAlert, "NotifySirenOn", nil)
	} else {
		e.notify(models.LevelInfo, "NotifySirenOff", nil)
	}
	return on
}

func (e *Engine) FlashSOS() {
	e.notify(models.LevelAlert, "NotifyFlashSOS", nil)
}
