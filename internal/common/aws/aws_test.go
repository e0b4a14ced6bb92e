package aws

import (
	"context"
	"fmt"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: awssdk.String("msg-1")}, nil
}

type fakeSES struct {
	input *ses.SendEmailInput
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	return &ses.SendEmailOutput{MessageId: awssdk.String("mail-1")}, nil
}

func TestSNSClient_PublishMessage(t *testing.T) {
	api := &fakeSNS{}
	id, err := NewSNSClientWithAPI(api).PublishMessage(context.Background(), "arn:aws:sns:eu-west-1:1:sites", "2 critical sites", "body")
	require.NoError(t, err)
	assert.Equal(t, "msg-1", id)
	assert.Equal(t, "arn:aws:sns:eu-west-1:1:sites", awssdk.ToString(api.input.TopicArn))
	assert.Equal(t, "2 critical sites", awssdk.ToString(api.input.Subject))

	api.err = fmt.Errorf("throttled")
	_, err = NewSNSClientWithAPI(api).PublishMessage(context.Background(), "arn", "s", "m")
	assert.ErrorContains(t, err, "throttled")
}

func TestSESClient_SendText(t *testing.T) {
	api := &fakeSES{}
	client := NewSESClientWithAPI(api)

	id, err := client.SendText(context.Background(), "ops@example.com", []string{"noc@example.com"}, "subject", "body")
	require.NoError(t, err)
	assert.Equal(t, "mail-1", id)
	assert.Equal(t, []string{"noc@example.com"}, api.input.Destination.ToAddresses)
	assert.Equal(t, "body", awssdk.ToString(api.input.Message.Body.Text.Data))

	_, err = client.SendText(context.Background(), "ops@example.com", nil, "subject", "body")
	assert.Error(t, err)
}
