package profile

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/yacciiyao/yoo-growth-buddy/internal/domain"
	"github.com/yacciiyao/yoo-growth-buddy/internal/observability"
	"github.com/yacciiyao/yoo-growth-buddy/internal/store"
)

const (
	defaultToyName    = "小悠"
	defaultToyAge     = "8"
	defaultToyGender  = "girl"
	defaultToyPersona = "一个叫小悠的温柔可爱小伙伴，会认真听小朋友说话，轻声细语，喜欢鼓励和安慰小朋友。"
)

// SetupRequest 家长初始化绑定请求。
type SetupRequest struct {
	Email                string   `json:"email"`
	ChildName            string   `json:"childName"`
	ChildAge             int      `json:"childAge"`
	ChildGender          string   `json:"childGender"`
	ChildInterests       []string `json:"childInterests"`
	ChildForbiddenTopics []string `json:"childForbiddenTopics"`
	DeviceSN             string   `json:"deviceSn"`
	ToyName              string   `json:"toyName"`
	ToyAge               string   `json:"toyAge"`
	ToyGender            string   `json:"toyGender"`
	ToyPersona           string   `json:"toyPersona"`
}

// SetupResponse 绑定结果。
type SetupResponse struct {
	ParentID int64 `json:"parentId"`
	ChildID  int64 `json:"childId"`
	DeviceID int64 `json:"deviceId"`
}

// ChildProfile 儿童档案视图，列表字段已拆开。
type ChildProfile struct {
	ChildID         int64    `json:"childId"`
	Name            string   `json:"name"`
	Age             int      `json:"age"`
	Gender          string   `json:"gender"`
	Interests       []string `json:"interests"`
	ForbiddenTopics []string `json:"forbiddenTopics"`
	ToyName         string   `json:"toyName,omitempty"`
	ToyPersona      string   `json:"toyPersona,omitempty"`
	DeviceSN        string   `json:"deviceSn,omitempty"`
}

// UpdateRequest 档案更新，nil 字段表示不改。
type UpdateRequest struct {
	Name            *string   `json:"name"`
	Age             *int      `json:"age"`
	Gender          *string   `json:"gender"`
	Interests       *[]string `json:"interests"`
	ForbiddenTopics *[]string `json:"forbiddenTopics"`
	ToyName         *string   `json:"toyName"`
	ToyPersona      *string   `json:"toyPersona"`
}

// Service 家长 / 儿童 / 设备配置相关业务。
type Service struct {
	store store.Store
	log   zerolog.Logger
}

func NewService(st store.Store) *Service {
	return &Service{store: st, log: observability.ComponentLogger("profile")}
}

// Setup 家长初始化绑定流程：
// 邮箱没有家长就新建，创建儿童，设备按 SN 创建或更新绑定。
func (s *Service) Setup(ctx context.Context, req SetupRequest) (*SetupResponse, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.ChildName) == "" || strings.TrimSpace(req.DeviceSN) == "" {
		return nil, errors.New("email、childName、deviceSn 均不能为空")
	}

	parent, err := s.store.FindParentByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		parent = &domain.Parent{Email: req.Email}
		if err := s.store.CreateParent(ctx, parent); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	child := &domain.Child{
		ParentID:        parent.ID,
		Name:            req.ChildName,
		Age:             req.ChildAge,
		Gender:          req.ChildGender,
		Interests:       domain.JoinList(req.ChildInterests),
		ForbiddenTopics: domain.JoinList(req.ChildForbiddenTopics),
	}
	if err := s.store.CreateChild(ctx, child); err != nil {
		return nil, err
	}

	device, err := s.store.FindDeviceBySN(ctx, req.DeviceSN)
	if errors.Is(err, store.ErrNotFound) {
		device = &domain.Device{
			DeviceSN:   req.DeviceSN,
			ToyName:    defaultString(req.ToyName, defaultToyName),
			ToyAge:     defaultString(req.ToyAge, defaultToyAge),
			ToyGender:  defaultString(req.ToyGender, defaultToyGender),
			ToyPersona: defaultString(req.ToyPersona, defaultToyPersona),
		}
	} else if err != nil {
		return nil, err
	} else {
		if req.ToyName != "" {
			device.ToyName = req.ToyName
		}
		if req.ToyAge != "" {
			device.ToyAge = req.ToyAge
		}
		if req.ToyGender != "" {
			device.ToyGender = req.ToyGender
		}
		if req.ToyPersona != "" {
			device.ToyPersona = req.ToyPersona
		}
	}
	device.BoundChildID = child.ID

	if err := s.store.UpsertDevice(ctx, device); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("parent_id", parent.ID).
		Int64("child_id", child.ID).
		Str("device_sn", device.DeviceSN).
		Msg("家长绑定完成")

	return &SetupResponse{ParentID: parent.ID, ChildID: child.ID, DeviceID: device.ID}, nil
}

// GetChildProfile 查询儿童档案，一并带出绑定的玩具信息。
func (s *Service) GetChildProfile(ctx context.Context, childID int64) (*ChildProfile, error) {
	child, err := s.store.FindChildByID(ctx, childID)
	if err != nil {
		return nil, err
	}

	profile := &ChildProfile{
		ChildID:         child.ID,
		Name:            child.Name,
		Age:             child.Age,
		Gender:          child.Gender,
		Interests:       domain.SplitList(child.Interests),
		ForbiddenTopics: domain.SplitList(child.ForbiddenTopics),
	}

	if device, err := s.store.FindDeviceByChildID(ctx, child.ID); err == nil {
		profile.ToyName = device.ToyName
		profile.ToyPersona = device.ToyPersona
		profile.DeviceSN = device.DeviceSN
	}
	return profile, nil
}

// UpdateChildProfile 更新儿童档案和玩具人设，只改传了的字段。
func (s *Service) UpdateChildProfile(ctx context.Context, childID int64, req UpdateRequest) (*ChildProfile, error) {
	child, err := s.store.FindChildByID(ctx, childID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		child.Name = *req.Name
	}
	if req.Age != nil {
		child.Age = *req.Age
	}
	if req.Gender != nil {
		child.Gender = *req.Gender
	}
	if req.Interests != nil {
		child.Interests = domain.JoinList(*req.Interests)
	}
	if req.ForbiddenTopics != nil {
		child.ForbiddenTopics = domain.JoinList(*req.ForbiddenTopics)
	}
	if err := s.store.UpdateChild(ctx, child); err != nil {
		return nil, err
	}

	if req.ToyName != nil || req.ToyPersona != nil {
		device, err := s.store.FindDeviceByChildID(ctx, child.ID)
		if err == nil {
			if req.ToyName != nil {
				device.ToyName = *req.ToyName
			}
			if req.ToyPersona != nil {
				device.ToyPersona = *req.ToyPersona
			}
			if err := s.store.UpsertDevice(ctx, device); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	return s.GetChildProfile(ctx, childID)
}

func defaultString(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
