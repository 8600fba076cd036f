package aws

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Mocks
// ==========================

type MockSES struct {
	mock.Mock
}

func (m *MockSES) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ses.SendEmailOutput), args.Error(1)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

// ==========================
// SES
// ==========================

func TestSESClient_SendEmail(t *testing.T) {
	api := new(MockSES)
	api.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *ses.SendEmailInput) bool {
		return aws.ToString(in.Source) == "noreply@fos-agri.ma" &&
			in.Destination.ToAddresses[0] == "agent@fos-agri.ma" &&
			aws.ToString(in.Message.Subject.Data) == "Demande acceptée"
	})).Return(&ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil)

	client := NewSESClientWithAPI(api, "noreply@fos-agri.ma")
	id, err := client.SendEmail(context.Background(), "agent@fos-agri.ma", "Demande acceptée", "txt", "<p>html</p>")

	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	api.AssertExpectations(t)
}

func TestSESClient_SendEmailError(t *testing.T) {
	api := new(MockSES)
	api.On("SendEmail", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	_, err := NewSESClientWithAPI(api, "noreply@fos-agri.ma").
		SendEmail(context.Background(), "agent@fos-agri.ma", "s", "t", "h")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

// ==========================
// SNS
// ==========================

func TestSNSClient_SendSMS_WithSenderID(t *testing.T) {
	api := new(MockSNS)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		attr, ok := in.MessageAttributes[senderIDAttribute]
		return ok && aws.ToString(attr.StringValue) == "FOSAGRI" &&
			aws.ToString(in.PhoneNumber) == "+212600000000"
	})).Return(&sns.PublishOutput{MessageId: aws.String("sms-1")}, nil)

	id, err := NewSNSClientWithAPI(api, "FOSAGRI").SendSMS(context.Background(), "+212600000000", "ok")

	require.NoError(t, err)
	assert.Equal(t, "sms-1", id)
	api.AssertExpectations(t)
}

func TestSNSClient_SendSMS_NoSenderID(t *testing.T) {
	api := new(MockSNS)
	api.On("Publish", mock.Anything, mock.MatchedBy(func(in *sns.PublishInput) bool {
		return in.MessageAttributes == nil
	})).Return(&sns.PublishOutput{}, nil)

	_, err := NewSNSClientWithAPI(api, "").SendSMS(context.Background(), "+212600000000", "ok")
	assert.NoError(t, err)
}
