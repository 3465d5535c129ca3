// Package mqtt publishes integration state to the MQTT broker.
//
// Every configured entry gets two retained topics:
//
//	graylogic/state/{domain}/{entry_id}         JSON state document
//	graylogic/availability/{domain}/{entry_id}  "online" or "offline"
//
// and accepts commands such as "refresh" on
//
//	graylogic/command/{domain}/{entry_id}
//
// The service status lives on graylogic/system/status. The broker
// publishes an offline status there through the Last Will if the
// connection drops; Close publishes a graceful one.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishState(mqtt.StateMessage{
//	    Domain: "minecraft_server", EntryID: id, Available: true,
//	    State: map[string]any{"players_online": 3},
//	})
package mqtt
