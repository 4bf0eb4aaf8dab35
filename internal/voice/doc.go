// Package voice turns transcribed speech into bulk light commands.
//
// A speech-to-text process either publishes what it heard to
// graylights/voice or appends it to a transcript file. Any text holding
// "light on" or "light off" (any case, with stray punctuation between
// the words) switches every configured light through the dispatcher.
// The transcript file is cleared once a command is recognised so the
// same words never fire twice.
//
// Usage:
//
//	in := voice.New(dispatcher, 30*time.Second)
//	if err := in.SubscribeMQTT(ctx, mqttClient); err != nil {
//	    return err
//	}
//	go in.WatchFile(ctx, "/var/lib/graylights/transcription.txt")
package voice
