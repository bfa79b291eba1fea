package grpcserver

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/patric-chuzhbe/regform/internal/logger"
	"github.com/patric-chuzhbe/regform/internal/models"
	"github.com/patric-chuzhbe/regform/internal/service"
)

type registrationService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*models.UserSummary, error)
	ListUsers(ctx context.Context) ([]models.Record, error)
	SuccessMessage() string
	Schema() models.Schema
}

// RegistrationHandler implements RegistrationServiceServer on top of the service layer.
type RegistrationHandler struct {
	svc registrationService
}

var _ RegistrationServiceServer = (*RegistrationHandler)(nil)

func NewRegistrationHandler(svc registrationService) *RegistrationHandler {
	return &RegistrationHandler{svc: svc}
}

// Register mirrors POST /register: rejections come back as success=false
// payloads, only undecodable payloads fail with InvalidArgument.
func (h *RegistrationHandler) Register(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in models.RegisterRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, service.MessageMalformedRequest)
	}

	summary, err := h.svc.Register(ctx, &in)
	if err != nil {
		message := service.Message(err)
		if message == service.MessageServerError {
			logger.Log.Errorln("registration failed", "error", err)
		}
		return toStruct(models.RegisterResponse{
			Success: false,
			Message: message,
		})
	}

	result := models.RegisterResponse{
		Success: true,
		Message: h.svc.SuccessMessage(),
	}
	if h.svc.Schema() == models.SchemaAccount {
		result.User = summary
	}

	return toStruct(result)
}

// ListUsers mirrors GET /users.
func (h *RegistrationHandler) ListUsers(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	users, err := h.svc.ListUsers(ctx)
	switch {
	case errors.Is(err, service.ErrListingUnavailable):
		return nil, status.Error(codes.FailedPrecondition, err.Error())
	case err != nil:
		logger.Log.Errorln("unable to list users", "error", err)
		return nil, status.Error(codes.Internal, service.MessageUsersUnavailable)
	}

	return toStruct(models.UsersResponse{
		Success: true,
		Count:   len(users),
		Users:   users,
	})
}

func fromStruct(in *structpb.Struct, target interface{}) error {
	if in == nil {
		return nil
	}

	data, err := protojson.Marshal(in)
	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

func toStruct(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, service.MessageServerError)
	}

	result := &structpb.Struct{}
	if err := protojson.Unmarshal(data, result); err != nil {
		return nil, status.Error(codes.Internal, service.MessageServerError)
	}

	return result, nil
}
