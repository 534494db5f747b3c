package protocol

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		in      []byte
		wantErr bool
	}{
		{
			name: "legacy telemetry",
			in:   []byte("0910000000000000000000000000:V247,L11097,S0,T34,E14,i84,e1,t30:"),
		},
		{
			name: "modern telemetry with checksum",
			in:   []byte("0910000000000000000000000000:v09u,s627,F10,u01254993,V2414,L00004555804,S01,T08,M0040,C0040,m0040,t29,i75,e00000,f5999,r61,b000,B0000000!S1H:"),
		},
		{
			name: "command",
			in:   []byte("CMD52324A20M16C006S001!5RE$"),
		},
		{
			name: "debug",
			in:   []byte("0910000000000000000000000000:DBG,NFO:booted up:"),
		},
		{
			name:    "malformed",
			in:      []byte("garbage"),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Classify(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got frame %#v", frame)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify(%q): %v", tt.in, err)
			}
		})
	}
}

func TestClassify_EncryptedRejectsUnsupportedVersion(t *testing.T) {
	_, err := ParseEncrypted([]byte("0910000000000000000000000000:v09x"))
	if err == nil {
		t.Fatalf("expected error for unsupported encrypted version")
	}
}
