package emailsvc_test

import (
	"bytes"
	"log"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/truonghoc/backend/core"
	emailsvc "github.com/truonghoc/backend/services/email"
	logsvc "github.com/truonghoc/backend/services/logger"
	testutil "github.com/truonghoc/backend/tests"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := testutil.NewConfig()
	to := []mail.Address{{Name: "Student", Address: "student@test.com"}}

	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantSent bool
		wantLog  string
	}{
		{"Plain body", core.EmailMessage{To: to, Subject: "Hello", BodyStr: "hi there"}, true, ""},
		{"No recipients", core.EmailMessage{Subject: "Nobody", BodyStr: "hi there"}, false, `skipping email "Nobody"`},
		{"No content", core.EmailMessage{To: to, Subject: "Empty"}, false, `skipping email "Empty"`},
		{"Unknown template", core.EmailMessage{To: to, Subject: "Missing", TemplateName: "does_not_exist"}, false, `skipping email "Missing"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			svc := emailsvc.NewConsoleServiceMock(conf, logsvc.NewRollbarLogger(log.New(&out, "", 0), conf))

			msg := tc.msg
			svc.SendMessages(&msg)

			sent := svc.SentMessages()
			if tc.wantSent {
				if assert.Len(t, sent, 1) {
					assert.Equal(t, tc.msg.BodyStr, sent[0].TextContent)
				}
				assert.Empty(t, out.String())
			} else {
				assert.Empty(t, sent)
				assert.Contains(t, out.String(), tc.wantLog)
			}
		})
	}
}
