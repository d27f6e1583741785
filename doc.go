// Package boxflash recovers the boot SPI NOR flash of a 96Boards
// Developerbox (Socionext SynQuacer E-series) over USB, with no dedicated
// programmer hardware.
//
// The board implements its debug UART with a Silicon Labs CP2102N, a USB to
// UART bridge that also exposes four GPIO pins. On the Developerbox these
// are wired to the onboard SPI NOR flash, so the flash bus can be bit-banged
// through the bridge's GPIO latch. Every pin change costs a full USB control
// transfer, which makes this extremely slow compared to a real SPI
// programmer; it is only practical as an emergency de-brick tool.
//
// To hand the flash bus over to the CP2102N, DSW4 must be changed from the
// default 00000000 to 10001000 (DSW4-1 and DSW4-5 turned on).
//
// # References:
//
// Developerbox
//   - [96Boards-HW]: Developerbox hardware documentation and schematic (https://www.96boards.org/documentation/enterprise/developerbox/hardware-docs/)
//
// Silicon Labs (https://www.silabs.com/documents/public/application-notes/)
//   - [SiLabs-AN571]: CP210x Virtual COM Port Interface (vendor-specific GPIO latch requests)
//   - [SiLabs-DS_CP2102N]: CP2102N USBXpress USB Bridge Data Sheet
//
// SPI Flash
//   - [MX25L1606E]: Macronix MX25L1606E Serial NOR Flash datasheet
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
package boxflash
