package dojo

// VerifyFile is the per-challenge verification script.
const VerifyFile = "verify"

// verifyTemplate must stay byte-for-byte identical: the platform runs it
// through exec-suid and expects four-space indentation.
const verifyTemplate = "#!/usr/bin/exec-suid -- /usr/bin/python3.12 -I\n" +
	"import sys\n" +
	"sys.path.append('/challenge')\n" +
	"\n" +
	"def print_flag():\n" +
	"    try:\n" +
	"        with open(\"/flag\", \"r\") as f:\n" +
	"            print(f.read())\n" +
	"    except FileNotFoundError:\n" +
	"        print(\"Error: Flag file not found.\")\n" +
	"\n" +
	"# Add your imports and other code below here\n"

// VerifyTemplate returns the script written into every new challenge.
func VerifyTemplate() string {
	return verifyTemplate
}
